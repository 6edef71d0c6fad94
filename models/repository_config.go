package models

import (
	"time"

	"gorm.io/gorm"
)

// RepositoryConfig はリポジトリごとの設定の上書き
// 空のフィールドは環境変数のデフォルト値を使う
type RepositoryConfig struct {
	ID                  string `gorm:"primaryKey"`
	RepoFullName        string `gorm:"uniqueIndex"` // owner/repo
	ReadyForReviewLabel string // レビュー待ちラベル名
	NeedsChangesLabel   string // 修正待ちラベル名
	BlessPhrase         string // 修正完了を知らせるコメントのフレーズ
	NeedsChangesComment string // 修正依頼時に投稿する説明コメント
	SlackChannelID      string // 通知先チャンネル（空なら通知しない）
	IsActive            bool   // 有効/無効フラグ
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}
