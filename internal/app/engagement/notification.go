package engagement

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/logger"
)

// NotificationLog persists notifications. Implemented by *sqlite.DB.
type NotificationLog interface {
	InsertNotification(n domain.Notification) (int64, error)
	ListNotifications(limit int, pendingOnly bool) ([]domain.Notification, error)
	MarkNotificationShown(id int64) (bool, error)
}

// memoryLimit caps the in-memory log used when no NotificationLog is set.
const memoryLimit = 100

// NotificationService records user-visible events and fans them out to sinks.
// Delivery is best-effort: failures are logged and never reach the caller
// of Notify.
type NotificationService struct {
	mu     sync.Mutex
	store  NotificationLog
	sinks  []domain.Notifier
	memory []domain.Notification
	nextID int64
	log    *zap.Logger
}

// NewNotificationService creates a notification service. store may be nil,
// in which case recent notifications are kept in memory only.
func NewNotificationService(store NotificationLog) *NotificationService {
	return &NotificationService{
		store:  store,
		nextID: 1,
		log:    logger.Named("notifications"),
	}
}

// Subscribe adds a sink that receives every notification after it is recorded.
func (n *NotificationService) Subscribe(sink domain.Notifier) {
	n.mu.Lock()
	n.sinks = append(n.sinks, sink)
	n.mu.Unlock()
}

// Notify records the event and delivers it to all sinks.
func (n *NotificationService) Notify(notif domain.Notification) {
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}
	notif.Shown = false

	n.mu.Lock()
	if n.store != nil {
		id, err := n.store.InsertNotification(notif)
		if err != nil {
			n.log.Warn("record notification failed", zap.String("type", string(notif.Type)), zap.Error(err))
		}
		notif.ID = id
	} else {
		notif.ID = n.nextID
		n.nextID++
		n.memory = append([]domain.Notification{notif}, n.memory...)
		if len(n.memory) > memoryLimit {
			n.memory = n.memory[:memoryLimit]
		}
	}
	sinks := append([]domain.Notifier(nil), n.sinks...)
	n.mu.Unlock()

	n.log.Info("notification",
		zap.String("type", string(notif.Type)),
		zap.String("title", notif.Title),
		zap.String("body", notif.Body),
	)
	for _, s := range sinks {
		deliver(n.log, s, notif)
	}
}

// deliver shields Notify from a panicking sink.
func deliver(log *zap.Logger, s domain.Notifier, notif domain.Notification) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("notification sink panicked", zap.Any("panic", r))
		}
	}()
	s.Notify(notif)
}

// List returns the most recent notifications, newest first.
func (n *NotificationService) List(limit int, pendingOnly bool) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.store != nil {
		return n.store.ListNotifications(limit, pendingOnly)
	}
	out := make([]domain.Notification, 0, limit)
	for _, notif := range n.memory {
		if pendingOnly && notif.Shown {
			continue
		}
		out = append(out, notif)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkShown marks a notification as shown.
func (n *NotificationService) MarkShown(id int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.store != nil {
		ok, err := n.store.MarkNotificationShown(id)
		if err != nil {
			return fmt.Errorf("%w: mark notification: %v", domain.ErrStore, err)
		}
		if !ok {
			return fmt.Errorf("%w: %d", domain.ErrNotificationNotFound, id)
		}
		return nil
	}
	for i := range n.memory {
		if n.memory[i].ID == id {
			n.memory[i].Shown = true
			return nil
		}
	}
	return fmt.Errorf("%w: %d", domain.ErrNotificationNotFound, id)
}
