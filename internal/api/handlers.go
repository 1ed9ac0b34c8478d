package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/push-dispatcher/internal/push"
	"github.com/tphakala/push-dispatcher/internal/tokenstore"
)

var (
	errRecipientRequired = errors.New("exactly one of token or topic is required")
	errNotificationEmpty = errors.New("notification title or body is required")
)

// PushRequest is the body of POST /api/v1/push.
type PushRequest struct {
	Token        string              `json:"token,omitempty"`
	Topic        string              `json:"topic,omitempty"`
	Notification NotificationPayload `json:"notification"`
}

// NotificationPayload is the user-visible part of a notification.
type NotificationPayload struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Image string `json:"image,omitempty"`
}

// PushResponse is returned once a notification is queued.
type PushResponse struct {
	TaskID string `json:"taskId"`
}

// HealthResponse reports liveness and queue state.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	BuildDate  string `json:"buildDate"`
	InstanceID string `json:"instanceId"`
	QueueDepth int    `json:"queueDepth"`
	Uptime     string `json:"uptime"`
}

// InvalidRecipientsResponse lists stale recipients, newest first.
type InvalidRecipientsResponse struct {
	Count      int                           `json:"count"`
	Recipients []tokenstore.InvalidRecipient `json:"recipients"`
}

// PurgeResponse reports how many stale entries were removed.
type PurgeResponse struct {
	Removed int64     `json:"removed"`
	Before  time.Time `json:"before"`
}

// Recipient converts the request addressing into a push.Recipient.
func (r *PushRequest) Recipient() (push.Recipient, error) {
	switch {
	case r.Token != "" && r.Topic != "":
		return push.Recipient{}, errRecipientRequired
	case r.Token != "":
		return push.Token(r.Token), nil
	case r.Topic != "":
		return push.Topic(r.Topic), nil
	default:
		return push.Recipient{}, errRecipientRequired
	}
}

// Payload converts the request notification into the provider payload.
func (r *PushRequest) Payload() (*push.Notification, error) {
	n := r.Notification
	if n.Title == "" && n.Body == "" {
		return nil, errNotificationEmpty
	}
	if n.Image != "" {
		if u, err := url.Parse(n.Image); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.New("notification image must be an absolute URL")
		}
	}
	return &push.Notification{Title: n.Title, Body: n.Body, Image: n.Image}, nil
}

func (s *Server) handlePush(c echo.Context) error {
	var req PushRequest
	if err := c.Bind(&req); err != nil {
		return s.handleError(c, err, "Invalid request body", http.StatusBadRequest)
	}

	recipient, err := req.Recipient()
	if err != nil {
		return s.handleError(c, err, "Invalid recipient", http.StatusBadRequest)
	}
	payload, err := req.Payload()
	if err != nil {
		return s.handleError(c, err, "Invalid notification", http.StatusBadRequest)
	}

	taskID := s.pusher.PushTo(recipient, payload)
	return c.JSON(http.StatusAccepted, PushResponse{TaskID: taskID})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Version:    s.build.GetVersion(),
		BuildDate:  s.build.GetBuildDate(),
		InstanceID: s.build.GetInstanceID(),
		QueueDepth: s.pusher.QueueDepth(),
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleListInvalid(c echo.Context) error {
	if s.store == nil {
		return s.handleError(c, nil, "Invalid recipient store is disabled", http.StatusServiceUnavailable)
	}

	limit := DefaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return s.handleError(c, err, "limit must be a positive integer", http.StatusBadRequest)
		}
		limit = min(n, MaxListLimit)
	}

	rows, err := s.store.List(c.Request().Context(), limit)
	if err != nil {
		return s.handleError(c, err, "Failed to list invalid recipients", http.StatusInternalServerError)
	}
	if rows == nil {
		rows = []tokenstore.InvalidRecipient{}
	}
	return c.JSON(http.StatusOK, InvalidRecipientsResponse{Count: len(rows), Recipients: rows})
}

func (s *Server) handleForgetInvalid(c echo.Context) error {
	if s.store == nil {
		return s.handleError(c, nil, "Invalid recipient store is disabled", http.StatusServiceUnavailable)
	}

	kind, err := push.ParseRecipientKind(c.Param("kind"))
	if err != nil {
		return s.handleError(c, err, "Invalid recipient kind", http.StatusBadRequest)
	}
	value, err := url.PathUnescape(c.Param("value"))
	if err != nil || value == "" {
		return s.handleError(c, err, "Invalid recipient value", http.StatusBadRequest)
	}

	removed, err := s.store.Forget(c.Request().Context(), push.Recipient{Kind: kind, Value: value})
	if err != nil {
		return s.handleError(c, err, "Failed to remove invalid recipient", http.StatusInternalServerError)
	}
	if !removed {
		return s.handleError(c, nil, "Recipient not found", http.StatusNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}

// handlePurgeInvalid drops entries not seen within olderThan, e.g.
// DELETE /api/v1/invalid-recipients?olderThan=720h.
func (s *Server) handlePurgeInvalid(c echo.Context) error {
	if s.store == nil {
		return s.handleError(c, nil, "Invalid recipient store is disabled", http.StatusServiceUnavailable)
	}

	age, err := time.ParseDuration(c.QueryParam("olderThan"))
	if err != nil || age <= 0 {
		return s.handleError(c, err, "olderThan must be a positive duration", http.StatusBadRequest)
	}

	before := time.Now().Add(-age).UTC()
	removed, err := s.store.Purge(c.Request().Context(), before)
	if err != nil {
		return s.handleError(c, err, "Failed to purge invalid recipients", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, PurgeResponse{Removed: removed, Before: before})
}
