// Package openshift reports cluster status for the dashboard, either from a
// fixed mock or from the Kubernetes API of an OpenShift cluster.
package openshift

import "context"

// ClusterQuery selects what cluster status to fetch.
type ClusterQuery struct {
	Query        string `json:"query"`
	Context      string `json:"context"`
	Namespace    string `json:"namespace"`
	ResourceType string `json:"resourceType"`
}

// PodCounts counts pods in the namespace.
type PodCounts struct {
	Running int `json:"running"`
	Total   int `json:"total"`
}

// DeploymentCounts counts deployments in the namespace.
type DeploymentCounts struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

// ServiceCounts counts services in the namespace.
type ServiceCounts struct {
	Available int `json:"available"`
	Total     int `json:"total"`
}

// ClusterStatus is the fixed-shape status object consumed by the dashboard.
type ClusterStatus struct {
	Healthy     bool             `json:"healthy"`
	Message     string           `json:"message"`
	Pods        PodCounts        `json:"pods"`
	Deployments DeploymentCounts `json:"deployments"`
	Services    ServiceCounts    `json:"services"`
}

// StatusFetcher fetches cluster status.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, q ClusterQuery) (*ClusterStatus, error)
}

// MockFetcher returns a fixed, healthy cluster status.
type MockFetcher struct{}

// NewMockFetcher creates a mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

// FetchStatus returns the demonstration status regardless of the query.
func (m *MockFetcher) FetchStatus(ctx context.Context, q ClusterQuery) (*ClusterStatus, error) {
	return &ClusterStatus{
		Healthy: true,
		Message: "All systems operational",
		Pods: PodCounts{
			Running: 12,
			Total:   15,
		},
		Deployments: DeploymentCounts{
			Total:     8,
			Available: 8,
		},
		Services: ServiceCounts{
			Available: 6,
			Total:     6,
		},
	}, nil
}
