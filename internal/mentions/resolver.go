// Package mentions suggests users to @-mention in replies. Candidates are
// deliberately limited to prior commenters on the story rather than the whole
// directory; the feature is best-effort and bounded by construction.
package mentions

import (
	"context"
	"fmt"
	"strings"

	"github.com/storyloomhq/storyloom/backend/internal/users"
)

const (
	commenterSampleSize = 20
	maxSuggestions      = 10
)

// Suggestion is one mention candidate.
type Suggestion struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// CommenterSource yields the bounded sample of users who commented on a story.
type CommenterSource interface {
	DistinctCommenters(ctx context.Context, storyID string, limit int) ([]string, error)
}

// UserSource resolves user ids to directory records.
type UserSource interface {
	GetMany(ctx context.Context, userIDs []string) ([]users.User, error)
}

// ResolverConfig describes the resolver's dependencies.
type ResolverConfig struct {
	Commenters CommenterSource
	Directory  UserSource
}

// Resolver matches a username query against a story's prior commenters.
type Resolver struct {
	commenters CommenterSource
	directory  UserSource
}

// NewResolver constructs the mention resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Commenters == nil {
		return nil, fmt.Errorf("mentions: commenter source required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("mentions: user directory required")
	}
	return &Resolver{commenters: cfg.Commenters, directory: cfg.Directory}, nil
}

// Suggest returns up to maxSuggestions users whose usernames contain the
// query, case-insensitively, drawn from the story's prior commenters. An
// empty query yields an empty result.
func (r *Resolver) Suggest(ctx context.Context, query, storyID string) ([]Suggestion, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []Suggestion{}, nil
	}

	commenterIDs, err := r.commenters.DistinctCommenters(ctx, storyID, commenterSampleSize)
	if err != nil {
		return nil, err
	}
	if len(commenterIDs) == 0 {
		return []Suggestion{}, nil
	}

	records, err := r.directory.GetMany(ctx, commenterIDs)
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, maxSuggestions)
	for _, record := range records {
		if !strings.Contains(strings.ToLower(record.Username), needle) {
			continue
		}
		suggestions = append(suggestions, Suggestion{UserID: record.ID, Username: record.Username})
		if len(suggestions) == maxSuggestions {
			break
		}
	}
	return suggestions, nil
}
