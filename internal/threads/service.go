package threads

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/storyloomhq/storyloom/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("threads: database handle is required")
	errMissingIDProvider = errors.New("threads: id provider is required")
	noOpLogger           = zap.NewNop()
)

// IDProvider issues identifiers for comments and replies.
type IDProvider interface {
	NewID() (string, error)
}

// Directory is the slice of the user directory the thread store mutates as a
// side effect of comment activity.
type Directory interface {
	AwardPoints(ctx context.Context, userID string, amount int64) error
	IncrementCommentCount(ctx context.Context, userID string) error
	DecrementCommentCount(ctx context.Context, userID string) error
}

// ServiceConfig describes the dependencies of the thread store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Directory  Directory
	Events     Sink
	Logger     *zap.Logger
}

// Service owns the comment aggregate: creation, listing, like toggles, reply
// insertion, and authorized deletion. All reply mutation goes through the
// parent comment's single write path.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	directory  Directory
	events     Sink
	logger     *zap.Logger
}

// NewService constructs the thread store service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		directory:  cfg.Directory,
		events:     cfg.Events,
		logger:     logger,
	}, nil
}

// CreateComment persists a new top-level comment and awards the author the
// fixed comment points. Story and chapter existence are not re-verified here;
// that trust boundary belongs to the caller.
func (s *Service) CreateComment(ctx context.Context, userID, storyID, chapterID, content string) (Comment, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Comment{}, ErrEmptyContent
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Comment{}, err
	}
	comment := Comment{
		ID:        id,
		UserID:    strings.TrimSpace(userID),
		StoryID:   strings.TrimSpace(storyID),
		ChapterID: strings.TrimSpace(chapterID),
		Content:   trimmed,
		Replies:   []Reply{},
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return Comment{}, err
	}

	if s.directory != nil {
		if err := s.directory.AwardPoints(ctx, comment.UserID, users.PointsPerComment); err != nil {
			s.logger.Warn("comment points award failed",
				zap.String("user_id", comment.UserID), zap.Error(err))
		}
		if err := s.directory.IncrementCommentCount(ctx, comment.UserID); err != nil {
			s.logger.Warn("comment count increment failed",
				zap.String("user_id", comment.UserID), zap.Error(err))
		}
	}

	s.emitCommentCreated(ctx, comment)
	return comment, nil
}

// ListByStory returns the story-level comments (no chapter scope), newest
// first.
func (s *Service) ListByStory(ctx context.Context, storyID string) ([]Comment, error) {
	return s.list(ctx, strings.TrimSpace(storyID), "")
}

// ListByChapter returns the comments scoped to one chapter, newest first.
func (s *Service) ListByChapter(ctx context.Context, storyID, chapterID string) ([]Comment, error) {
	return s.list(ctx, strings.TrimSpace(storyID), strings.TrimSpace(chapterID))
}

func (s *Service) list(ctx context.Context, storyID, chapterID string) ([]Comment, error) {
	var comments []Comment
	err := s.db.WithContext(ctx).
		Where("story_id = ? AND chapter_id = ?", storyID, chapterID).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// ToggleLike flips the user's like on a comment and returns the resulting
// count plus whether the user now likes it.
func (s *Service) ToggleLike(ctx context.Context, commentID, userID string) (int, bool, error) {
	comment, err := s.get(ctx, commentID)
	if err != nil {
		return 0, false, err
	}

	likedBy, hasLiked := toggleLikeSet(comment.LikedBy, strings.TrimSpace(userID))
	comment.LikedBy = likedBy
	comment.Likes = len(likedBy)

	if err := s.save(ctx, &comment); err != nil {
		return 0, false, err
	}
	return comment.Likes, hasLiked, nil
}

// AddReply appends a reply to the comment's ordered reply list. Replies do
// not award points; only top-level comments do.
func (s *Service) AddReply(ctx context.Context, commentID, userID, content string, mentions []Mention) (Comment, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Comment{}, ErrEmptyContent
	}

	comment, err := s.get(ctx, commentID)
	if err != nil {
		return Comment{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Comment{}, err
	}
	reply := Reply{
		ID:        id,
		UserID:    strings.TrimSpace(userID),
		Content:   trimmed,
		Mentions:  mentions,
		CreatedAt: s.clock().UTC(),
	}
	comment.Replies = append(comment.Replies, reply)

	if err := s.save(ctx, &comment); err != nil {
		return Comment{}, err
	}

	s.emitReplyAdded(ctx, comment, reply)
	return comment, nil
}

// ToggleLikeReply flips the user's like on one reply within one comment.
func (s *Service) ToggleLikeReply(ctx context.Context, commentID, replyID, userID string) (int, bool, error) {
	comment, err := s.get(ctx, commentID)
	if err != nil {
		return 0, false, err
	}

	index := replyIndex(comment.Replies, replyID)
	if index < 0 {
		return 0, false, ErrReplyNotFound
	}

	likedBy, hasLiked := toggleLikeSet(comment.Replies[index].LikedBy, strings.TrimSpace(userID))
	comment.Replies[index].LikedBy = likedBy
	comment.Replies[index].Likes = len(likedBy)

	if err := s.save(ctx, &comment); err != nil {
		return 0, false, err
	}
	return comment.Replies[index].Likes, hasLiked, nil
}

// DeleteComment removes the aggregate. Only the comment's author or an admin
// may delete; the author's comment counter is decremented on success.
func (s *Service) DeleteComment(ctx context.Context, commentID, requesterID, requesterRole string) error {
	comment, err := s.get(ctx, commentID)
	if err != nil {
		return err
	}
	if !mayModify(comment.UserID, requesterID, requesterRole) {
		return ErrForbidden
	}

	if err := s.db.WithContext(ctx).Delete(&Comment{}, "comment_id = ?", comment.ID).Error; err != nil {
		return err
	}

	if s.directory != nil {
		if err := s.directory.DecrementCommentCount(ctx, comment.UserID); err != nil {
			s.logger.Warn("comment count decrement failed",
				zap.String("user_id", comment.UserID), zap.Error(err))
		}
	}
	return nil
}

// DeleteReply removes one reply from its parent comment, with the same
// authorization rule as comment deletion.
func (s *Service) DeleteReply(ctx context.Context, commentID, replyID, requesterID, requesterRole string) error {
	comment, err := s.get(ctx, commentID)
	if err != nil {
		return err
	}

	index := replyIndex(comment.Replies, replyID)
	if index < 0 {
		return ErrReplyNotFound
	}
	if !mayModify(comment.Replies[index].UserID, requesterID, requesterRole) {
		return ErrForbidden
	}

	comment.Replies = append(comment.Replies[:index], comment.Replies[index+1:]...)
	return s.save(ctx, &comment)
}

// Get returns one comment aggregate by id.
func (s *Service) Get(ctx context.Context, commentID string) (Comment, error) {
	return s.get(ctx, commentID)
}

// DistinctCommenters returns the ids of up to limit distinct users who have
// commented on the story, in first-seen order. The mention resolver draws its
// candidate pool from this bounded sample.
func (s *Service) DistinctCommenters(ctx context.Context, storyID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&Comment{}).
		Distinct("user_id").
		Where("story_id = ?", strings.TrimSpace(storyID)).
		Limit(limit).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) get(ctx context.Context, commentID string) (Comment, error) {
	var comment Comment
	err := s.db.WithContext(ctx).Where("comment_id = ?", strings.TrimSpace(commentID)).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Comment{}, ErrCommentNotFound
	}
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

func (s *Service) save(ctx context.Context, comment *Comment) error {
	return s.db.WithContext(ctx).Save(comment).Error
}

func (s *Service) emitCommentCreated(ctx context.Context, comment Comment) {
	if s.events == nil {
		return
	}
	if err := s.events.CommentCreated(ctx, comment); err != nil {
		s.logger.Warn("comment created event dropped",
			zap.String("comment_id", comment.ID), zap.Error(err))
	}
}

func (s *Service) emitReplyAdded(ctx context.Context, comment Comment, reply Reply) {
	if s.events == nil {
		return
	}
	if err := s.events.ReplyAdded(ctx, comment, reply); err != nil {
		s.logger.Warn("reply added event dropped",
			zap.String("comment_id", comment.ID), zap.String("reply_id", reply.ID), zap.Error(err))
	}
}

func mayModify(ownerID, requesterID, requesterRole string) bool {
	if requesterRole == users.RoleAdmin {
		return true
	}
	return ownerID != "" && ownerID == strings.TrimSpace(requesterID)
}

func replyIndex(replies []Reply, replyID string) int {
	for index, reply := range replies {
		if reply.ID == replyID {
			return index
		}
	}
	return -1
}
