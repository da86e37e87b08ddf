package mentions

import (
	"context"
	"fmt"
	"testing"

	"github.com/storyloomhq/storyloom/backend/internal/users"
)

type stubCommenters struct {
	byStory map[string][]string
}

func (s stubCommenters) DistinctCommenters(_ context.Context, storyID string, limit int) ([]string, error) {
	ids := s.byStory[storyID]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type stubDirectory struct {
	records map[string]users.User
}

func (s stubDirectory) GetMany(_ context.Context, userIDs []string) ([]users.User, error) {
	var result []users.User
	for _, id := range userIDs {
		if record, ok := s.records[id]; ok {
			result = append(result, record)
		}
	}
	return result, nil
}

func newTestResolver(t *testing.T, byStory map[string][]string, records map[string]users.User) *Resolver {
	t.Helper()
	resolver, err := NewResolver(ResolverConfig{
		Commenters: stubCommenters{byStory: byStory},
		Directory:  stubDirectory{records: records},
	})
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	return resolver
}

func TestSuggestEmptyQueryReturnsEmpty(t *testing.T) {
	resolver := newTestResolver(t,
		map[string][]string{"story-1": {"u1"}},
		map[string]users.User{"u1": {ID: "u1", Username: "ayla"}},
	)
	suggestions, err := resolver.Suggest(context.Background(), "   ", "story-1")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(suggestions) != 0 {
		t.Fatalf("expected empty suggestions, got %v", suggestions)
	}
}

func TestSuggestNoPriorCommenters(t *testing.T) {
	resolver := newTestResolver(t, map[string][]string{}, map[string]users.User{})
	suggestions, err := resolver.Suggest(context.Background(), "ay", "story-untouched")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(suggestions) != 0 {
		t.Fatalf("story with no commenters must yield empty, got %v", suggestions)
	}
}

func TestSuggestCaseInsensitiveSubstring(t *testing.T) {
	resolver := newTestResolver(t,
		map[string][]string{"story-1": {"u1", "u2", "u3"}},
		map[string]users.User{
			"u1": {ID: "u1", Username: "Aylathequill"},
			"u2": {ID: "u2", Username: "bram"},
			"u3": {ID: "u3", Username: "graylaw"},
		},
	)
	suggestions, err := resolver.Suggest(context.Background(), "AYLA", "story-1")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 matches, got %v", suggestions)
	}
}

func TestSuggestCapsResults(t *testing.T) {
	byStory := map[string][]string{"story-1": {}}
	records := map[string]users.User{}
	for i := 0; i < 15; i++ {
		id := fmt.Sprintf("u%d", i)
		byStory["story-1"] = append(byStory["story-1"], id)
		records[id] = users.User{ID: id, Username: fmt.Sprintf("reader%d", i)}
	}
	resolver := newTestResolver(t, byStory, records)

	suggestions, err := resolver.Suggest(context.Background(), "reader", "story-1")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(suggestions) != maxSuggestions {
		t.Fatalf("expected cap of %d, got %d", maxSuggestions, len(suggestions))
	}
}
