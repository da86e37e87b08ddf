package users

import (
	"context"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate user schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1700000000, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func seedUser(t *testing.T, service *Service, user User) {
	t.Helper()
	if err := service.db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", user.ID, err)
	}
}

func TestAwardPointsIncrementsCounter(t *testing.T) {
	service := newTestService(t)
	seedUser(t, service, User{ID: "user-1", Username: "ayla", Points: 490})

	if err := service.AwardPoints(context.Background(), "user-1", PointsPerComment); err != nil {
		t.Fatalf("award points failed: %v", err)
	}

	record, err := service.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record.Points != 500 {
		t.Fatalf("expected 500 points, got %d", record.Points)
	}
	if TierFor(record.Points) != TierSilver {
		t.Fatalf("expected silver tier at 500 points, got %s", TierFor(record.Points))
	}
}

func TestAwardPointsUnknownUser(t *testing.T) {
	service := newTestService(t)
	if err := service.AwardPoints(context.Background(), "ghost", 10); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDecrementCommentCountFloorsAtZero(t *testing.T) {
	service := newTestService(t)
	seedUser(t, service, User{ID: "user-2", Username: "bram", CommentCount: 1})

	for i := 0; i < 3; i++ {
		if err := service.DecrementCommentCount(context.Background(), "user-2"); err != nil {
			t.Fatalf("decrement %d failed: %v", i, err)
		}
	}

	record, err := service.Get(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record.CommentCount != 0 {
		t.Fatalf("expected comment count floored at 0, got %d", record.CommentCount)
	}
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		points int64
		want   Tier
	}{
		{0, TierBronze},
		{499, TierBronze},
		{500, TierSilver},
		{1999, TierSilver},
		{2000, TierGold},
		{4999, TierGold},
		{5000, TierDiamond},
		{125000, TierDiamond},
	}
	for _, testCase := range cases {
		if got := TierFor(testCase.points); got != testCase.want {
			t.Fatalf("TierFor(%d) = %s, want %s", testCase.points, got, testCase.want)
		}
	}
}
