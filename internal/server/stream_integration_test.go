package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/storyloomhq/storyloom/backend/internal/notifications"
	"github.com/storyloomhq/storyloom/backend/internal/users"
)

func TestNotificationStreamRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	response, err := http.Get(env.server.URL + "/notifications/stream")
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", response.StatusCode)
	}
}

func TestNotificationStreamDeliversLiveEvents(t *testing.T) {
	env := newTestEnv(t)
	authorToken := env.token(t, "author-1", users.RoleAuthor)

	streamRequest, err := http.NewRequest(http.MethodGet,
		env.server.URL+"/notifications/stream?access_token="+authorToken, http.NoBody)
	if err != nil {
		t.Fatalf("failed to build stream request: %v", err)
	}
	streamResponse, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResponse.Body.Close()
	})
	if streamResponse.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResponse.StatusCode)
	}

	// The hub registers the subscription before the handler writes any
	// event; poll presence so the comment below is guaranteed to push.
	deadline := time.Now().Add(2 * time.Second)
	for !env.hub.IsOnline("author-1") {
		if time.Now().After(deadline) {
			t.Fatal("author never came online")
		}
		time.Sleep(10 * time.Millisecond)
	}

	commenterToken := env.token(t, "commenter-1", users.RoleReader)
	response := env.request(t, http.MethodPost, "/comments", commenterToken, map[string]string{
		"storyId": "story-1", "content": "live wire",
	})
	response.Body.Close()
	if response.StatusCode != http.StatusCreated {
		t.Fatalf("comment create failed with %d", response.StatusCode)
	}

	notification := readStreamNotification(t, bufio.NewReader(streamResponse.Body))
	if notification.Type != notifications.TypeComment {
		t.Fatalf("expected comment notification, got %s", notification.Type)
	}
	if notification.UserID != "author-1" {
		t.Fatalf("pushed to wrong user: %s", notification.UserID)
	}
	if notification.TriggeredBy != "commenter-1" {
		t.Fatalf("unexpected actor: %s", notification.TriggeredBy)
	}
}

func readStreamNotification(t *testing.T, reader *bufio.Reader) notifications.Notification {
	t.Helper()
	type readResult struct {
		line string
		err  error
	}

	currentEventType := ""
	deadline := time.After(5 * time.Second)
	for {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := reader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for stream event")
		case result := <-resultCh:
			if result.err != nil {
				t.Fatalf("failed to read stream: %v", result.err)
			}
			line := strings.TrimSpace(result.line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			if currentEventType != streamEventNotification {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var notification notifications.Notification
			if err := json.Unmarshal([]byte(payload), &notification); err != nil {
				t.Fatalf("failed to decode notification payload: %v", err)
			}
			return notification
		}
	}
}
