package models

import (
	"time"

	"gorm.io/gorm"
)

// UserMapping は GitHub username と Slack User ID の対応
// Slack 通知で PR 作成者にメンションするのに使う
type UserMapping struct {
	ID             string `gorm:"primaryKey"`
	GithubUsername string `gorm:"uniqueIndex"`
	SlackUserID    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}
