package api

import (
	"bufio"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"splitmail/utils"
)

// Notification announces a mailbox-changing action to connected
// clients so open tabs can refresh their lists.
type Notification struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"` // "sent", "archived", "trashed", "rsvp", "splits_changed"
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Time    time.Time              `json:"time"`
}

// NotificationHandler fans notifications out over SSE and WebSocket
type NotificationHandler struct {
	subscribers map[string]chan Notification
	mu          sync.RWMutex
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler() *NotificationHandler {
	return &NotificationHandler{
		subscribers: make(map[string]chan Notification),
	}
}

func (h *NotificationHandler) subscribe() (string, chan Notification) {
	id := uuid.New().String()
	ch := make(chan Notification, 10)
	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *NotificationHandler) unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
	h.mu.Unlock()
}

// HandleSSE streams notifications as Server-Sent Events
func (h *NotificationHandler) HandleSSE(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	subscriberID, messageChan := h.subscribe()
	utils.Log.Debug("SSE subscriber connected: %s", subscriberID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.unsubscribe(subscriberID)
			utils.Log.Debug("SSE subscriber disconnected: %s", subscriberID)
		}()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-messageChan:
				if !ok {
					return
				}
				data, _ := json.Marshal(notification)
				w.WriteString("data: " + string(data) + "\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

// HandleWebSocket streams notifications over a WebSocket
func (h *NotificationHandler) HandleWebSocket(c *websocket.Conn) {
	subscriberID, messageChan := h.subscribe()
	utils.Log.Debug("WebSocket subscriber connected: %s", subscriberID)

	defer func() {
		h.unsubscribe(subscriberID)
		c.Close()
		utils.Log.Debug("WebSocket subscriber disconnected: %s", subscriberID)
	}()

	for notification := range messageChan {
		if err := c.WriteJSON(notification); err != nil {
			utils.Log.Error("Failed to send WebSocket notification: %v", err)
			break
		}
	}
}

// Broadcast sends a notification to every subscriber. Safe to call
// on a nil handler so callers never have to check.
func (h *NotificationHandler) Broadcast(notifType, message string, data map[string]interface{}) {
	if h == nil {
		return
	}
	notification := Notification{
		ID:      uuid.New().String(),
		Type:    notifType,
		Message: message,
		Data:    data,
		Time:    time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for subscriberID, ch := range h.subscribers {
		select {
		case ch <- notification:
		default:
			utils.Log.Warn("Notification channel full for subscriber %s", subscriberID)
		}
	}
}
