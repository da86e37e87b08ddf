package presence

import (
	"context"
	"testing"
	"time"

	"github.com/storyloomhq/storyloom/backend/internal/notifications"
)

func TestHubPushReachesSubscriber(t *testing.T) {
	hub := NewHub(HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, _, cleanup := hub.Join(ctx, "user-1")
	defer cleanup()

	if !hub.IsOnline("user-1") {
		t.Fatal("expected user-1 online after join")
	}

	hub.Push("user-1", notifications.Notification{ID: "n-1", UserID: "user-1", Type: notifications.TypeComment})

	select {
	case received := <-stream:
		if received.ID != "n-1" {
			t.Fatalf("unexpected notification: %#v", received)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected live notification within deadline")
	}
}

func TestHubIsolatedByUser(t *testing.T) {
	hub := NewHub(HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamOne, _, cleanupOne := hub.Join(ctx, "user-1")
	defer cleanupOne()
	streamTwo, _, cleanupTwo := hub.Join(ctx, "user-2")
	defer cleanupTwo()

	hub.Push("user-2", notifications.Notification{ID: "n-2", UserID: "user-2", Type: notifications.TypeReply})

	select {
	case <-streamOne:
		t.Fatal("did not expect notification for unrelated user")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case received := <-streamTwo:
		if received.UserID != "user-2" {
			t.Fatalf("expected user-2, got %s", received.UserID)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification for subscribed user")
	}
}

func TestHubLastWriterWins(t *testing.T) {
	hub := NewHub(HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, replaced, cleanupFirst := hub.Join(ctx, "user-1")
	defer cleanupFirst()
	streamSecond, _, cleanupSecond := hub.Join(ctx, "user-1")
	defer cleanupSecond()

	select {
	case <-replaced:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("first subscription must be signalled replaced")
	}

	hub.Push("user-1", notifications.Notification{ID: "n-3", UserID: "user-1"})
	select {
	case received := <-streamSecond:
		if received.ID != "n-3" {
			t.Fatalf("unexpected notification: %#v", received)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("replacement subscription must receive pushes")
	}
}

func TestHubCleanupRemovesPresence(t *testing.T) {
	hub := NewHub(HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, cleanup := hub.Join(ctx, "user-1")
	cleanup()

	if hub.IsOnline("user-1") {
		t.Fatal("expected user-1 offline after cleanup")
	}
}

func TestHubStaleCleanupKeepsReplacement(t *testing.T) {
	hub := NewHub(HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, cleanupFirst := hub.Join(ctx, "user-1")
	_, _, cleanupSecond := hub.Join(ctx, "user-1")
	defer cleanupSecond()

	// The stale subscription's cleanup must not knock the replacement offline.
	cleanupFirst()
	if !hub.IsOnline("user-1") {
		t.Fatal("replacement subscription must stay online")
	}
}

func TestHubOfflineUntilJoin(t *testing.T) {
	hub := NewHub(HubConfig{})
	if hub.IsOnline("nobody") {
		t.Fatal("fresh hub must report everyone offline")
	}
}
