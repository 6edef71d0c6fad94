package models

import (
	"time"

	"gorm.io/gorm"
)

// ReconcileRecord は 1 回のラベル同期の結果
// 判定には使わない（状態はあくまで PR のラベル）
type ReconcileRecord struct {
	ID            string `gorm:"primaryKey"`
	Repo          string `gorm:"index:idx_repo_pr"`
	PRNumber      int    `gorm:"index:idx_repo_pr"`
	Trigger       string // "opened", "ready_for_review", "converted_to_draft", "review_submitted", "bless_comment", "manual", "sweep"
	Outcome       string // "ready", "needs_changes", "draft", "failed"
	LabelsAdded   string // カンマ区切り
	LabelsRemoved string // カンマ区切り
	CommentPosted bool
	Error         string
	CreatedAt     time.Time
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}
