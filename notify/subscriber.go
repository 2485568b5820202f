// Package notify keeps a WebSocket connection to the backend's push
// endpoint and dispatches typed events: incoming buddy requests and
// finished video processing.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	cursorServiceName  = "notify"
	cursorSaveInterval = 5 * time.Second
	reconnectDelay     = 5 * time.Second
)

// Event kinds pushed by the backend.
const (
	KindBuddyRequest   = "buddy_request"
	KindVideoProcessed = "video_processed"
)

// Event is the raw JSON structure of one push message.
type Event struct {
	ID                int64  `json:"id"`
	Kind              string `json:"kind"`
	SenderDisplayName string `json:"sender_display_name,omitempty"`
	VideoID           string `json:"video_id,omitempty"`
}

// Handler receives dispatched events.
type Handler interface {
	HandleBuddyRequest(ctx context.Context, senderDisplayName string)
	HandleVideoProcessed(ctx context.Context, videoID string)
}

// CursorStore persists the last-processed event id across restarts.
type CursorStore interface {
	GetCursor(ctx context.Context, service string) (int64, error)
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// Subscriber connects to the push endpoint and processes events.
type Subscriber struct {
	url     string
	handler Handler
	cursors CursorStore
	logger  *slog.Logger
}

// NewSubscriber creates a new push subscriber.
func NewSubscriber(notifyURL string, handler Handler, cursors CursorStore, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     notifyURL,
		handler: handler,
		cursors: cursors,
		logger:  logger,
	}
}

// Start connects and processes events until the context is cancelled. It
// automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("push connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) string {
	u, _ := url.Parse(s.url)
	q := u.Query()
	if cursor > 0 {
		q.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.cursors.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	wsURL := s.buildURL(cursor)
	s.logger.Info("connecting to push endpoint", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial push endpoint: %w", err)
	}
	defer conn.Close()

	lastCursorSave := time.Now()
	var latestCursor int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		latestCursor = event.ID
		s.dispatch(ctx, &event)

		if time.Since(lastCursorSave) >= cursorSaveInterval {
			if err := s.cursors.UpdateCursor(ctx, cursorServiceName, latestCursor); err != nil {
				s.logger.Error("failed to save cursor", "error", err)
			} else {
				lastCursorSave = time.Now()
			}
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, event *Event) {
	switch event.Kind {
	case KindBuddyRequest:
		s.handler.HandleBuddyRequest(ctx, event.SenderDisplayName)
	case KindVideoProcessed:
		s.handler.HandleVideoProcessed(ctx, event.VideoID)
	default:
		s.logger.Debug("ignoring unknown event kind", "kind", event.Kind)
	}
}
