package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storyloomhq/storyloom/backend/internal/catalog"
	"github.com/storyloomhq/storyloom/backend/internal/threads"
	"github.com/storyloomhq/storyloom/backend/internal/users"
	"go.uber.org/zap"
)

var (
	errMissingStore      = errors.New("notifications: store is required")
	errMissingIDProvider = errors.New("notifications: id provider is required")
	noOpLogger           = zap.NewNop()
)

// IDProvider issues notification identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// Presence answers whether a recipient currently holds a live connection.
type Presence interface {
	IsOnline(userID string) bool
}

// Pusher delivers a notification over the recipient's live channel. It is
// only invoked for recipients the presence registry reports online.
type Pusher interface {
	Push(userID string, notification Notification)
}

// CatalogSource is the slice of the story catalog the dispatcher reads.
type CatalogSource interface {
	GetStory(ctx context.Context, storyID string) (catalog.Story, error)
	FavoriteUserIDs(ctx context.Context, storyID string) ([]string, error)
}

// DirectorySource resolves actor usernames for message snapshots.
type DirectorySource interface {
	Get(ctx context.Context, userID string) (users.User, error)
}

// DispatcherConfig describes the dispatcher's dependencies.
type DispatcherConfig struct {
	Store      *Store
	IDProvider IDProvider
	Presence   Presence
	Pusher     Pusher
	Catalog    CatalogSource
	Directory  DirectorySource
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Dispatcher translates domain events into zero or more persisted
// notifications plus optional live pushes. Persistence is the durable source
// of truth; the push is fire-and-forget for recipients currently online.
// Dispatch is best-effort end to end: failures are logged and never surface
// to the action that triggered them.
type Dispatcher struct {
	store      *Store
	idProvider IDProvider
	presence   Presence
	pusher     Pusher
	catalog    CatalogSource
	directory  DirectorySource
	logger     *zap.Logger
	now        func() time.Time
}

// NewDispatcher constructs the notification dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Dispatcher{
		store:      cfg.Store,
		idProvider: cfg.IDProvider,
		presence:   cfg.Presence,
		pusher:     cfg.Pusher,
		catalog:    cfg.Catalog,
		directory:  cfg.Directory,
		logger:     logger,
		now:        clock,
	}, nil
}

// CommentCreated notifies the story's author about a new comment, unless the
// author wrote it themselves.
func (d *Dispatcher) CommentCreated(ctx context.Context, comment threads.Comment) error {
	story, err := d.getStory(ctx, comment.StoryID)
	if err != nil {
		d.logger.Warn("comment notification skipped, story lookup failed",
			zap.String("story_id", comment.StoryID), zap.Error(err))
		return nil
	}
	if story.AuthorID == "" || story.AuthorID == comment.UserID {
		return nil
	}

	actor := d.actorName(ctx, comment.UserID)
	d.deliver(ctx, Notification{
		UserID:      story.AuthorID,
		Type:        TypeComment,
		Message:     fmt.Sprintf("%s commented on your story %q", actor, story.Title),
		StoryID:     comment.StoryID,
		CommentID:   comment.ID,
		TriggeredBy: comment.UserID,
	})
	return nil
}

// ReplyAdded notifies the parent comment's author and every mentioned user.
// Self-notifications are suppressed, and one triggering action produces at
// most one notification per distinct recipient (the reply notification wins
// over a mention of the same user).
func (d *Dispatcher) ReplyAdded(ctx context.Context, comment threads.Comment, reply threads.Reply) error {
	storyTitle := d.storyTitle(ctx, comment.StoryID)
	actor := d.actorName(ctx, reply.UserID)
	notified := map[string]bool{reply.UserID: true}

	if comment.UserID != "" && !notified[comment.UserID] {
		notified[comment.UserID] = true
		d.deliver(ctx, Notification{
			UserID:      comment.UserID,
			Type:        TypeReply,
			Message:     fmt.Sprintf("%s replied to your comment on %q", actor, storyTitle),
			StoryID:     comment.StoryID,
			CommentID:   comment.ID,
			TriggeredBy: reply.UserID,
		})
	}

	for _, mention := range reply.Mentions {
		recipient := strings.TrimSpace(mention.UserID)
		if recipient == "" || notified[recipient] {
			continue
		}
		notified[recipient] = true
		d.deliver(ctx, Notification{
			UserID:      recipient,
			Type:        TypeMention,
			Message:     fmt.Sprintf("%s mentioned you in a reply on %q", actor, storyTitle),
			StoryID:     comment.StoryID,
			CommentID:   comment.ID,
			TriggeredBy: reply.UserID,
		})
	}
	return nil
}

// ChapterPublished fans out a new-chapter notification to every user who
// favorited the story, excluding the story's author.
func (d *Dispatcher) ChapterPublished(ctx context.Context, storyID, chapterTitle string) error {
	story, err := d.getStory(ctx, storyID)
	if err != nil {
		return err
	}
	favoriters, err := d.catalog.FavoriteUserIDs(ctx, storyID)
	if err != nil {
		return err
	}
	message := fmt.Sprintf("New chapter %q published on %q", chapterTitle, story.Title)
	for _, recipient := range favoriters {
		if recipient == story.AuthorID {
			continue
		}
		d.deliver(ctx, Notification{
			UserID:      recipient,
			Type:        TypeNewChapter,
			Message:     message,
			StoryID:     storyID,
			TriggeredBy: story.AuthorID,
		})
	}
	return nil
}

// ContactReplied notifies the original contact-form submitter, if one was
// authenticated at submission time.
func (d *Dispatcher) ContactReplied(ctx context.Context, contactID, submitterID, subject string) error {
	recipient := strings.TrimSpace(submitterID)
	if recipient == "" {
		return nil
	}
	d.deliver(ctx, Notification{
		UserID:    recipient,
		Type:      TypeContactReply,
		Message:   fmt.Sprintf("Support replied to your message %q", subject),
		ContactID: contactID,
	})
	return nil
}

// deliver persists the record, then pushes it to the recipient's live channel
// when the presence registry reports them online. Persistence failures are
// logged only; the push is skipped for records that failed to persist.
func (d *Dispatcher) deliver(ctx context.Context, notification Notification) {
	id, err := d.idProvider.NewID()
	if err != nil {
		d.logger.Error("notification id generation failed", zap.Error(err))
		return
	}
	notification.ID = id
	notification.CreatedAt = d.now().UTC()

	if err := d.store.Create(ctx, &notification); err != nil {
		d.logger.Error("notification persistence failed",
			zap.String("recipient", notification.UserID),
			zap.String("type", string(notification.Type)),
			zap.Error(err))
		return
	}

	if d.presence == nil || d.pusher == nil {
		return
	}
	if d.presence.IsOnline(notification.UserID) {
		d.pusher.Push(notification.UserID, notification)
	}
}

func (d *Dispatcher) getStory(ctx context.Context, storyID string) (catalog.Story, error) {
	if d.catalog == nil {
		return catalog.Story{}, errors.New("notifications: catalog source not configured")
	}
	return d.catalog.GetStory(ctx, storyID)
}

func (d *Dispatcher) storyTitle(ctx context.Context, storyID string) string {
	story, err := d.getStory(ctx, storyID)
	if err != nil {
		return "a story"
	}
	return story.Title
}

func (d *Dispatcher) actorName(ctx context.Context, userID string) string {
	if d.directory == nil {
		return "Someone"
	}
	record, err := d.directory.Get(ctx, userID)
	if err != nil || record.Username == "" {
		return "Someone"
	}
	return record.Username
}
