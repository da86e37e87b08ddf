package notifications

import (
	"errors"
	"time"
)

// Type discriminates the notification payload.
type Type string

const (
	TypeNewChapter   Type = "new_chapter"
	TypeMention      Type = "mention"
	TypeReply        Type = "reply"
	TypeLike         Type = "like"
	TypeComment      Type = "comment"
	TypeContactReply Type = "contact_reply"
)

// ErrNotificationNotFound indicates no notification exists for the recipient
// with that id.
var ErrNotificationNotFound = errors.New("notifications: notification not found")

// Notification is one persisted delivery record. Immutable after creation
// except for the Read flag, which only ever transitions false to true. The
// message is a denormalized snapshot taken at creation time, so a later
// delete of the referenced comment or story leaves nothing dangling.
type Notification struct {
	ID          string    `gorm:"column:notification_id;primaryKey;size:190;not null" json:"id"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index:idx_notifications_user_created,priority:1" json:"userId"`
	Type        Type      `gorm:"column:type;size:32;not null" json:"type"`
	Message     string    `gorm:"column:message;type:text;not null" json:"message"`
	StoryID     string    `gorm:"column:story_id;size:190" json:"storyId,omitempty"`
	CommentID   string    `gorm:"column:comment_id;size:190" json:"commentId,omitempty"`
	ContactID   string    `gorm:"column:contact_id;size:190" json:"contactId,omitempty"`
	TriggeredBy string    `gorm:"column:triggered_by;size:190" json:"triggeredBy,omitempty"`
	Read        bool      `gorm:"column:read;not null;default:false" json:"read"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index:idx_notifications_user_created,priority:2" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}
