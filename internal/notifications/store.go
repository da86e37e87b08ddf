package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const listCap = 50

// StoreConfig describes the dependencies of the notification store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Store persists notification records. Every query is keyed by recipient;
// there is no cross-user visibility.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore constructs the notification store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notifications: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{db: cfg.Database, now: clock}, nil
}

// Create persists one notification record. The caller supplies the id.
func (s *Store) Create(ctx context.Context, notification *Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now().UTC()
	}
	return s.db.WithContext(ctx).Create(notification).Error
}

// List returns the recipient's notifications, newest first, capped. A non-nil
// readFilter restricts to read or unread records.
func (s *Store) List(ctx context.Context, userID string, readFilter *bool) ([]Notification, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at DESC").
		Limit(listCap)
	if readFilter != nil {
		query = query.Where("read = ?", *readFilter)
	}
	var records []Notification
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UnreadCount returns the number of unread notifications for the recipient.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read = ?", strings.TrimSpace(userID), false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead sets the record's read flag. Marking an already-read record is a
// no-op; the flag never transitions back.
func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) error {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND notification_id = ?", strings.TrimSpace(userID), strings.TrimSpace(notificationID)).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return s.ensureExists(ctx, userID, notificationID)
	}
	return nil
}

// MarkAllRead sets every unread record for the recipient to read.
func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read = ?", strings.TrimSpace(userID), false).
		Update("read", true).Error
}

// Delete removes one of the recipient's notifications.
func (s *Store) Delete(ctx context.Context, userID, notificationID string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND notification_id = ?", strings.TrimSpace(userID), strings.TrimSpace(notificationID)).
		Delete(&Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteAllRead sweeps every read record for the recipient.
func (s *Store) DeleteAllRead(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND read = ?", strings.TrimSpace(userID), true).
		Delete(&Notification{}).Error
}

// ensureExists distinguishes "already read" (a no-op) from "absent" after an
// update touched no rows.
func (s *Store) ensureExists(ctx context.Context, userID, notificationID string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND notification_id = ?", strings.TrimSpace(userID), strings.TrimSpace(notificationID)).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
