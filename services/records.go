package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"pr-needs-review/models"
)

// NewRecord は同期結果から監査レコードを作る
func NewRecord(repoFullName string, number int, trigger Trigger, res *Result, runErr error) models.ReconcileRecord {
	rec := models.ReconcileRecord{
		ID:        uuid.NewString(),
		Repo:      repoFullName,
		PRNumber:  number,
		Trigger:   string(trigger),
		CreatedAt: time.Now(),
	}
	if res != nil {
		rec.Outcome = string(res.Outcome)
		rec.LabelsAdded = strings.Join(res.LabelsAdded, ",")
		rec.LabelsRemoved = strings.Join(res.LabelsRemoved, ",")
		rec.CommentPosted = res.CommentPosted
	}
	if runErr != nil {
		rec.Outcome = string(OutcomeFailed)
		rec.Error = runErr.Error()
	}
	return rec
}

// SaveRecord は監査レコードを保存する。db が nil なら何もしない
func SaveRecord(db *gorm.DB, rec models.ReconcileRecord) error {
	if db == nil {
		return nil
	}
	if err := db.Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save reconcile record: %w", err)
	}
	return nil
}

// ListRecords は PR の同期履歴を新しい順に返す
func ListRecords(db *gorm.DB, repoFullName string, number int, limit int) ([]models.ReconcileRecord, error) {
	var records []models.ReconcileRecord
	q := db.Where("repo = ? AND pr_number = ?", repoFullName, number).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list reconcile records: %w", err)
	}
	return records, nil
}

// CleanupOldRecords は retention より古い監査レコードを削除する
func CleanupOldRecords(ctx context.Context, db *gorm.DB, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := db.Unscoped().Where("created_at < ?", cutoff).Delete(&models.ReconcileRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old reconcile records: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		clog.FromContext(ctx).Infof("old reconcile records deleted: %d", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// RunRecordCleanup は ctx が終わるまで定期的に古いレコードを削除する
func RunRecordCleanup(ctx context.Context, db *gorm.DB, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := CleanupOldRecords(ctx, db, retention); err != nil {
				clog.FromContext(ctx).Errorf("record cleanup error: %v", err)
			}
		}
	}
}
