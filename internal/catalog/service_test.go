package catalog

import (
	"context"
	"errors"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/storyloomhq/storyloom/backend/internal/users"
	"gorm.io/gorm"
)

func newTestCatalog(t *testing.T) (*Service, *users.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Story{}, &Chapter{}, &Favorite{}, &ReadingEntry{}, &users.User{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	directory, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create user directory: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db, Points: directory})
	if err != nil {
		t.Fatalf("failed to create catalog service: %v", err)
	}

	if err := db.Create(&users.User{ID: "reader-1", Username: "mira"}).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	if err := db.Create(&Story{ID: "story-1", Title: "The Hollow Crown", AuthorID: "author-1"}).Error; err != nil {
		t.Fatalf("failed to seed story: %v", err)
	}
	if err := db.Create(&Chapter{ID: "chapter-1", StoryID: "story-1", Title: "Prologue"}).Error; err != nil {
		t.Fatalf("failed to seed chapter: %v", err)
	}
	return service, directory
}

func TestGetStoryNotFound(t *testing.T) {
	service, _ := newTestCatalog(t)
	if _, err := service.GetStory(context.Background(), "missing"); !errors.Is(err, ErrStoryNotFound) {
		t.Fatalf("expected ErrStoryNotFound, got %v", err)
	}
}

func TestRecordReadAwardsPointsOnce(t *testing.T) {
	service, directory := newTestCatalog(t)
	ctx := context.Background()

	if err := service.RecordRead(ctx, "reader-1", "story-1", "chapter-1"); err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	if err := service.RecordRead(ctx, "reader-1", "story-1", "chapter-1"); err != nil {
		t.Fatalf("second read failed: %v", err)
	}

	record, err := directory.Get(ctx, "reader-1")
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if record.Points != users.PointsPerChapterRead {
		t.Fatalf("expected %d points after re-read, got %d", users.PointsPerChapterRead, record.Points)
	}

	history, err := service.History(ctx, "reader-1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one history entry, got %d", len(history))
	}
}

func TestRecordReadUnknownChapter(t *testing.T) {
	service, _ := newTestCatalog(t)
	err := service.RecordRead(context.Background(), "reader-1", "story-1", "chapter-404")
	if !errors.Is(err, ErrChapterNotFound) {
		t.Fatalf("expected ErrChapterNotFound, got %v", err)
	}
}

func TestFavoriteRoundTrip(t *testing.T) {
	service, _ := newTestCatalog(t)
	ctx := context.Background()

	if err := service.AddFavorite(ctx, "reader-1", "story-1"); err != nil {
		t.Fatalf("add favorite failed: %v", err)
	}
	// Re-adding is a no-op.
	if err := service.AddFavorite(ctx, "reader-1", "story-1"); err != nil {
		t.Fatalf("duplicate favorite failed: %v", err)
	}

	ids, err := service.FavoriteUserIDs(ctx, "story-1")
	if err != nil {
		t.Fatalf("favorite user ids failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "reader-1" {
		t.Fatalf("unexpected favorite user ids: %v", ids)
	}

	if err := service.RemoveFavorite(ctx, "reader-1", "story-1"); err != nil {
		t.Fatalf("remove favorite failed: %v", err)
	}
	ids, err = service.FavoriteUserIDs(ctx, "story-1")
	if err != nil {
		t.Fatalf("favorite user ids failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no favorites after removal, got %v", ids)
	}
}
