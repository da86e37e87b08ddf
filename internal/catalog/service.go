package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storyloomhq/storyloom/backend/internal/users"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrStoryNotFound indicates the catalog holds no story with that id.
	ErrStoryNotFound = errors.New("catalog: story not found")
	// ErrChapterNotFound indicates the chapter does not exist within the story.
	ErrChapterNotFound = errors.New("catalog: chapter not found")
)

// PointsAwarder is the slice of the user directory the catalog needs for
// reading-history awards.
type PointsAwarder interface {
	AwardPoints(ctx context.Context, userID string, amount int64) error
}

// ServiceConfig describes the dependencies of the catalog service.
type ServiceConfig struct {
	Database *gorm.DB
	Points   PointsAwarder
	Clock    func() time.Time
}

// Service exposes the story/chapter read lookups the comment subsystem
// depends on, plus favorites and reading history.
type Service struct {
	db     *gorm.DB
	points PointsAwarder
	now    func() time.Time
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("catalog: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, points: cfg.Points, now: clock}, nil
}

// GetStory returns the story record for the given id.
func (s *Service) GetStory(ctx context.Context, storyID string) (Story, error) {
	var record Story
	err := s.db.WithContext(ctx).Where("story_id = ?", strings.TrimSpace(storyID)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Story{}, ErrStoryNotFound
	}
	if err != nil {
		return Story{}, err
	}
	return record, nil
}

// GetChapter returns the chapter record, scoped to its story.
func (s *Service) GetChapter(ctx context.Context, storyID, chapterID string) (Chapter, error) {
	var record Chapter
	err := s.db.WithContext(ctx).
		Where("story_id = ? AND chapter_id = ?", strings.TrimSpace(storyID), strings.TrimSpace(chapterID)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Chapter{}, ErrChapterNotFound
	}
	if err != nil {
		return Chapter{}, err
	}
	return record, nil
}

// AddFavorite registers the user for new-chapter notifications on the story.
// Adding an existing favorite is a no-op.
func (s *Service) AddFavorite(ctx context.Context, userID, storyID string) error {
	if _, err := s.GetStory(ctx, storyID); err != nil {
		return err
	}
	favorite := Favorite{UserID: strings.TrimSpace(userID), StoryID: strings.TrimSpace(storyID)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&favorite).Error
}

// RemoveFavorite drops the user's favorite mark for the story.
func (s *Service) RemoveFavorite(ctx context.Context, userID, storyID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND story_id = ?", strings.TrimSpace(userID), strings.TrimSpace(storyID)).
		Delete(&Favorite{}).Error
}

// FavoriteUserIDs lists the users who favorited the story.
func (s *Service) FavoriteUserIDs(ctx context.Context, storyID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Favorite{}).
		Where("story_id = ?", strings.TrimSpace(storyID)).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RecordRead records that the user read a chapter. The first read of a
// chapter awards reading points; re-reads only refresh the timestamp.
func (s *Service) RecordRead(ctx context.Context, userID, storyID, chapterID string) error {
	if _, err := s.GetChapter(ctx, storyID, chapterID); err != nil {
		return err
	}

	uid := strings.TrimSpace(userID)
	cid := strings.TrimSpace(chapterID)

	var existing ReadingEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND chapter_id = ?", uid, cid).
		First(&existing).Error
	if err == nil {
		return s.db.WithContext(ctx).Model(&ReadingEntry{}).
			Where("user_id = ? AND chapter_id = ?", uid, cid).
			Update("read_at", s.now()).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	entry := ReadingEntry{
		UserID:    uid,
		ChapterID: cid,
		StoryID:   strings.TrimSpace(storyID),
		ReadAt:    s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}
	if s.points == nil {
		return nil
	}
	return s.points.AwardPoints(ctx, uid, users.PointsPerChapterRead)
}

// History returns the user's reading history, most recent first.
func (s *Service) History(ctx context.Context, userID string) ([]ReadingEntry, error) {
	var entries []ReadingEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("read_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
