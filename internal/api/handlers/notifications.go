package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/narvanalabs/ops-dashboard/internal/notify"
	"github.com/narvanalabs/ops-dashboard/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// NotificationHandler exposes the notification queue.
type NotificationHandler struct {
	queue    *notify.Queue
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(q *notify.Queue, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		queue:  q,
		logger: log.WithComponent("notifications"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// CreateNotificationRequest is the body of POST /v1/notifications.
type CreateNotificationRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Variant     notify.Variant `json:"variant,omitempty"`
}

// Validate validates the create notification request.
func (r *CreateNotificationRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	switch r.Variant {
	case "", notify.VariantDefault, notify.VariantDestructive:
		return nil
	default:
		return errors.New("variant must be default or destructive")
	}
}

// List handles GET /v1/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.queue.List())
}

// Create handles POST /v1/notifications.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, r, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	n := h.queue.Push(strings.TrimSpace(req.Title), req.Description, req.Variant)
	WriteJSON(w, http.StatusCreated, n)
}

// Dismiss handles DELETE /v1/notifications/{id}.
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.queue.Dismiss(id); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			WriteNotFound(w, r, "Notification not found")
			return
		}
		h.logger.WithContext(r.Context()).Error("failed to dismiss notification", "id", id, "error", err)
		WriteInternalError(w, r, "Failed to dismiss notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamMessage is written to websocket clients. The first message is a
// snapshot of live notifications; later ones carry a single event.
type StreamMessage struct {
	Type          string                `json:"type"`
	Notifications []notify.Notification `json:"notifications,omitempty"`
	Notification  *notify.Notification  `json:"notification,omitempty"`
}

// MessageSnapshot is the type of the first stream message.
const MessageSnapshot = "snapshot"

// Stream handles GET /v1/notifications/ws.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	events := h.queue.Subscribe()
	defer h.queue.Unsubscribe(events)

	if err := writeMessage(conn, StreamMessage{Type: MessageSnapshot, Notifications: h.queue.List()}); err != nil {
		return
	}

	// Reads are only needed to process control frames and detect close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	log.Debug("notification stream started")
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return
			}
			n := ev.Notification
			if err := writeMessage(conn, StreamMessage{Type: ev.Type, Notification: &n}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-done:
			log.Debug("notification stream closed by client")
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, msg StreamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
