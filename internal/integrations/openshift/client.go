package openshift

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// NewClientset builds a Kubernetes clientset, preferring in-cluster config and
// falling back to the given kubeconfig path or ~/.kube/config.
func NewClientset(kubeconfig string) (kubernetes.Interface, error) {
	config, err := restConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to get kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}
	return clientset, nil
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		if config, err := rest.InClusterConfig(); err == nil {
			return config, nil
		}
		if home := homedir.HomeDir(); home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}

// LiveFetcher reads cluster status from the Kubernetes API.
type LiveFetcher struct {
	clientset kubernetes.Interface
	namespace string
	logger    *slog.Logger
}

// NewLiveFetcher creates a fetcher over clientset. namespace is used when the
// query does not name one.
func NewLiveFetcher(clientset kubernetes.Interface, namespace string, logger *slog.Logger) *LiveFetcher {
	if namespace == "" {
		namespace = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveFetcher{
		clientset: clientset,
		namespace: namespace,
		logger:    logger,
	}
}

// FetchStatus counts pods, deployments and services in the namespace. The
// cluster is healthy when every deployment has its desired replicas available.
func (f *LiveFetcher) FetchStatus(ctx context.Context, q ClusterQuery) (*ClusterStatus, error) {
	namespace := q.Namespace
	if namespace == "" {
		namespace = f.namespace
	}

	pods, err := f.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing pods in %s: %w", namespace, err)
	}
	deployments, err := f.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing deployments in %s: %w", namespace, err)
	}
	services, err := f.clientset.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing services in %s: %w", namespace, err)
	}
	endpoints, err := f.clientset.CoreV1().Endpoints(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing endpoints in %s: %w", namespace, err)
	}

	status := &ClusterStatus{
		Pods:        countPods(pods.Items),
		Deployments: countDeployments(deployments.Items),
		Services:    countServices(services.Items, endpoints.Items),
	}

	unavailable := status.Deployments.Total - status.Deployments.Available
	status.Healthy = unavailable == 0
	if status.Healthy {
		status.Message = "All systems operational"
	} else {
		status.Message = fmt.Sprintf("%d of %d deployments unavailable in %s", unavailable, status.Deployments.Total, namespace)
	}

	f.logger.Debug("cluster status fetched",
		"namespace", namespace,
		"pods_running", status.Pods.Running,
		"deployments_available", status.Deployments.Available,
		"healthy", status.Healthy,
	)

	return status, nil
}

func countPods(pods []corev1.Pod) PodCounts {
	counts := PodCounts{Total: len(pods)}
	for _, pod := range pods {
		if pod.Status.Phase == corev1.PodRunning {
			counts.Running++
		}
	}
	return counts
}

func countDeployments(deployments []appsv1.Deployment) DeploymentCounts {
	counts := DeploymentCounts{Total: len(deployments)}
	for _, d := range deployments {
		desired := int32(1)
		if d.Spec.Replicas != nil {
			desired = *d.Spec.Replicas
		}
		if d.Status.AvailableReplicas >= desired {
			counts.Available++
		}
	}
	return counts
}

// countServices treats a service as available when its endpoints carry at
// least one ready address.
func countServices(services []corev1.Service, endpoints []corev1.Endpoints) ServiceCounts {
	ready := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		for _, subset := range ep.Subsets {
			if len(subset.Addresses) > 0 {
				ready[ep.Name] = true
				break
			}
		}
	}

	counts := ServiceCounts{Total: len(services)}
	for _, svc := range services {
		if ready[svc.Name] {
			counts.Available++
		}
	}
	return counts
}
