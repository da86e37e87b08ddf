// Package presence tracks which users currently hold a live notification
// channel. The registry is process-local and volatile: it is rebuilt from
// zero on restart, so every user counts as offline until they reconnect. An
// optional Redis mirror makes presence visible across instances.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/storyloomhq/storyloom/backend/internal/notifications"
	"go.uber.org/zap"
)

const (
	streamBufferSize  = 16
	heartbeatInterval = 30 * time.Second
)

// Mirror reflects join/leave transitions into a shared registry so sibling
// instances can answer IsOnline. All calls are best-effort.
type Mirror interface {
	Join(ctx context.Context, userID string) error
	Refresh(ctx context.Context, userID string) error
	Leave(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// HubConfig describes optional hub collaborators.
type HubConfig struct {
	Mirror Mirror
	Logger *zap.Logger
}

// Hub maps each user to at most one live stream. A second join for the same
// user wins: the previous subscription is signalled closed and replaced.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	nextID      int64
	mirror      Mirror
	logger      *zap.Logger
}

type subscriber struct {
	id       int64
	stream   chan notifications.Notification
	replaced chan struct{}
}

// NewHub constructs the presence hub.
func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		mirror:      cfg.Mirror,
		logger:      logger,
	}
}

// Join registers the user's live channel and returns the notification stream,
// a channel closed if a later join replaces this one, and a cleanup func.
// Cleanup also runs when ctx is cancelled.
func (h *Hub) Join(ctx context.Context, userID string) (<-chan notifications.Notification, <-chan struct{}, func()) {
	if userID == "" {
		stream := make(chan notifications.Notification)
		close(stream)
		return stream, make(chan struct{}), func() {}
	}

	entry := &subscriber{
		stream:   make(chan notifications.Notification, streamBufferSize),
		replaced: make(chan struct{}),
	}

	h.mu.Lock()
	h.nextID++
	entry.id = h.nextID
	if previous, ok := h.subscribers[userID]; ok {
		close(previous.replaced)
	}
	h.subscribers[userID] = entry
	h.mu.Unlock()

	h.mirrorJoin(ctx, userID)

	cleanup := func() {
		h.leave(userID, entry.id)
	}
	go func() {
		h.heartbeat(ctx, userID, entry.id)
		cleanup()
	}()
	return entry.stream, entry.replaced, cleanup
}

// Push delivers a notification to the user's live stream, if any. Delivery is
// non-blocking: a full buffer drops the event, since the persisted record is
// the source of truth.
func (h *Hub) Push(userID string, notification notifications.Notification) {
	h.mu.RLock()
	entry := h.subscribers[userID]
	h.mu.RUnlock()
	if entry == nil {
		return
	}
	select {
	case entry.stream <- notification:
	default:
		h.logger.Warn("live notification dropped, stream buffer full",
			zap.String("user_id", userID))
	}
}

// IsOnline reports whether the user holds a live channel, here or (when a
// mirror is configured) on a sibling instance.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	_, ok := h.subscribers[userID]
	h.mu.RUnlock()
	if ok {
		return true
	}
	if h.mirror == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	online, err := h.mirror.IsOnline(ctx, userID)
	if err != nil {
		h.logger.Warn("presence mirror lookup failed", zap.Error(err))
		return false
	}
	return online
}

// leave removes the mapping only if it still belongs to this subscription;
// a replacement that happened in between stays registered.
func (h *Hub) leave(userID string, subscriberID int64) {
	h.mu.Lock()
	entry, ok := h.subscribers[userID]
	stillCurrent := ok && entry.id == subscriberID
	if stillCurrent {
		delete(h.subscribers, userID)
	}
	h.mu.Unlock()

	if stillCurrent && h.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := h.mirror.Leave(ctx, userID); err != nil {
			h.logger.Warn("presence mirror leave failed", zap.Error(err))
		}
	}
}

func (h *Hub) mirrorJoin(ctx context.Context, userID string) {
	if h.mirror == nil {
		return
	}
	if err := h.mirror.Join(ctx, userID); err != nil {
		h.logger.Warn("presence mirror join failed", zap.Error(err))
	}
}

// heartbeat keeps the mirror entry alive while the subscription is current,
// then returns when ctx ends.
func (h *Hub) heartbeat(ctx context.Context, userID string, subscriberID int64) {
	if h.mirror == nil {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.isCurrent(userID, subscriberID) {
				return
			}
			if err := h.mirror.Refresh(ctx, userID); err != nil {
				h.logger.Warn("presence mirror refresh failed", zap.Error(err))
			}
		}
	}
}

func (h *Hub) isCurrent(userID string, subscriberID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.subscribers[userID]
	return ok && entry.id == subscriberID
}
