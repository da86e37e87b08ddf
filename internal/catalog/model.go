package catalog

import "time"

// Story is the catalog record the comment subsystem reads for author and
// title lookups. Story authoring and editing live elsewhere.
type Story struct {
	ID        string    `gorm:"column:story_id;primaryKey;size:190;not null"`
	Title     string    `gorm:"column:title;size:320;not null"`
	AuthorID  string    `gorm:"column:author_id;size:190;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Story) TableName() string {
	return "stories"
}

// Chapter belongs to exactly one story.
type Chapter struct {
	ID        string    `gorm:"column:chapter_id;primaryKey;size:190;not null"`
	StoryID   string    `gorm:"column:story_id;size:190;not null;index"`
	Title     string    `gorm:"column:title;size:320;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Chapter) TableName() string {
	return "chapters"
}

// Favorite marks a story a user wants new-chapter notifications for.
type Favorite struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	StoryID   string    `gorm:"column:story_id;primaryKey;size:190;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Favorite) TableName() string {
	return "favorites"
}

// ReadingEntry records that a user has read a chapter. One row per
// user/chapter pair; re-reads refresh the timestamp only.
type ReadingEntry struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	ChapterID string    `gorm:"column:chapter_id;primaryKey;size:190;not null"`
	StoryID   string    `gorm:"column:story_id;size:190;not null;index"`
	ReadAt    time.Time `gorm:"column:read_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ReadingEntry) TableName() string {
	return "reading_history"
}
