package threads

import (
	"errors"
	"time"
)

var (
	// ErrCommentNotFound indicates the referenced comment does not exist.
	ErrCommentNotFound = errors.New("threads: comment not found")
	// ErrReplyNotFound indicates the referenced reply does not exist within its comment.
	ErrReplyNotFound = errors.New("threads: reply not found")
	// ErrForbidden indicates the requester may not perform the operation.
	ErrForbidden = errors.New("threads: forbidden")
	// ErrEmptyContent indicates the submitted content was blank.
	ErrEmptyContent = errors.New("threads: content must not be empty")
)

// Mention tags another user inside reply content. The client resolves the
// username to a user id and carries both in the request body.
type Mention struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Reply is owned by its parent Comment; its id is only meaningful within
// that parent. It is never addressable outside the aggregate.
type Reply struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Mentions  []Mention `json:"mentions,omitempty"`
	Likes     int       `json:"likes"`
	LikedBy   []string  `json:"likedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is the thread aggregate: one row per comment, with the ordered
// reply list and like membership serialized into the row. An empty ChapterID
// marks a story-level comment.
type Comment struct {
	ID        string    `gorm:"column:comment_id;primaryKey;size:190;not null" json:"id"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index" json:"userId"`
	StoryID   string    `gorm:"column:story_id;size:190;not null;index:idx_comments_story_chapter,priority:1" json:"storyId"`
	ChapterID string    `gorm:"column:chapter_id;size:190;not null;default:'';index:idx_comments_story_chapter,priority:2" json:"chapterId,omitempty"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	Likes     int       `gorm:"column:likes;not null;default:0" json:"likes"`
	LikedBy   []string  `gorm:"column:liked_by;type:text;serializer:json" json:"likedBy,omitempty"`
	Replies   []Reply   `gorm:"column:replies;type:text;serializer:json" json:"replies"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// HasLiked reports whether the user is in the comment's like set.
func (c Comment) HasLiked(userID string) bool {
	return containsUser(c.LikedBy, userID)
}

func containsUser(likedBy []string, userID string) bool {
	for _, id := range likedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// toggleLikeSet flips the user's membership in the like set and returns the
// updated set plus whether the user now likes it. The like count is always
// the set's cardinality, so it can never go negative.
func toggleLikeSet(likedBy []string, userID string) ([]string, bool) {
	for index, id := range likedBy {
		if id == userID {
			return append(likedBy[:index], likedBy[index+1:]...), false
		}
	}
	return append(likedBy, userID), true
}
