package users

import (
	"strings"
	"time"
)

// Role names recognised by authorization checks.
const (
	RoleReader = "reader"
	RoleAuthor = "author"
	RoleAdmin  = "admin"
)

// Point awards for member actions.
const (
	PointsPerComment     = 10
	PointsPerChapterRead = 5
)

// Tier is a membership rank derived from the points counter.
type Tier string

const (
	TierBronze  Tier = "bronze"
	TierSilver  Tier = "silver"
	TierGold    Tier = "gold"
	TierDiamond Tier = "diamond"
)

const (
	silverThreshold  = 500
	goldThreshold    = 2000
	diamondThreshold = 5000
)

// TierFor maps a points counter onto its membership tier. The tier is never
// stored; it is recomputed from points wherever it is displayed.
func TierFor(points int64) Tier {
	switch {
	case points >= diamondThreshold:
		return TierDiamond
	case points >= goldThreshold:
		return TierGold
	case points >= silverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// User is the directory record the comment subsystem reads and whose points
// counter it increments. Account creation and credentials live elsewhere.
type User struct {
	ID           string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	Username     string    `gorm:"column:username;size:190;not null;uniqueIndex"`
	Role         string    `gorm:"column:role;size:32;not null;default:'reader'"`
	AvatarURL    string    `gorm:"column:avatar_url;size:512"`
	Points       int64     `gorm:"column:points;not null;default:0"`
	CommentCount int64     `gorm:"column:comment_count;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
