package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates the directory holds no record for the id.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrInvalidUserID indicates an empty or malformed user identifier.
	ErrInvalidUserID = errors.New("users: invalid user id")
)

// ServiceConfig describes the dependencies required by the user directory.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service exposes read lookups plus the points/comment-count mutations the
// comment subsystem triggers. It never mutates identity fields.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the user directory service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// Get returns the directory record for the given user id.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	id := normalize(userID)
	if id == "" {
		return User{}, ErrInvalidUserID
	}
	var record User
	err := s.db.WithContext(ctx).Where("user_id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return record, nil
}

// GetMany returns the records for the given ids, skipping unknown ones.
// Result order is unspecified.
func (s *Service) GetMany(ctx context.Context, userIDs []string) ([]User, error) {
	ids := make([]string, 0, len(userIDs))
	for _, raw := range userIDs {
		if id := normalize(raw); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var records []User
	if err := s.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// AwardPoints adds the given amount to the user's points counter. The counter
// only ever grows; callers pass fixed per-action amounts.
func (s *Service) AwardPoints(ctx context.Context, userID string, amount int64) error {
	id := normalize(userID)
	if id == "" {
		return ErrInvalidUserID
	}
	if amount <= 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"points":     gorm.Expr("points + ?", amount),
			"updated_at": s.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementCommentCount bumps the user's comment counter by one.
func (s *Service) IncrementCommentCount(ctx context.Context, userID string) error {
	return s.adjustCommentCount(ctx, userID, gorm.Expr("comment_count + 1"))
}

// DecrementCommentCount lowers the user's comment counter by one, floored at
// zero.
func (s *Service) DecrementCommentCount(ctx context.Context, userID string) error {
	return s.adjustCommentCount(ctx, userID, gorm.Expr("MAX(comment_count - 1, 0)"))
}

func (s *Service) adjustCommentCount(ctx context.Context, userID string, expr interface{}) error {
	id := normalize(userID)
	if id == "" {
		return ErrInvalidUserID
	}
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("user_id = ?", id).
		Updates(map[string]interface{}{
			"comment_count": expr,
			"updated_at":    s.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
