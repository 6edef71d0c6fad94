package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pr-needs-review/models"
)

// SaveUserMapping は GitHub ユーザーと Slack ユーザーの対応を作成または更新する
func SaveUserMapping(db *gorm.DB, githubUsername, slackUserID string) (*models.UserMapping, error) {
	githubUsername = strings.TrimSpace(githubUsername)
	slackUserID = strings.TrimSpace(slackUserID)
	if githubUsername == "" || slackUserID == "" {
		return nil, errors.New("github username and slack user id are required")
	}

	var mapping models.UserMapping
	err := db.Where("github_username = ?", githubUsername).First(&mapping).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		mapping = models.UserMapping{
			ID:             uuid.NewString(),
			GithubUsername: githubUsername,
			SlackUserID:    slackUserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := db.Create(&mapping).Error; err != nil {
			return nil, fmt.Errorf("failed to create user mapping: %w", err)
		}
		return &mapping, nil
	}

	mapping.SlackUserID = slackUserID
	mapping.UpdatedAt = now
	if err := db.Save(&mapping).Error; err != nil {
		return nil, fmt.Errorf("failed to update user mapping: %w", err)
	}
	return &mapping, nil
}

// DeleteUserMapping は対応を削除する。存在しなければ gorm.ErrRecordNotFound を返す
func DeleteUserMapping(db *gorm.DB, githubUsername string) error {
	result := db.Unscoped().Where("github_username = ?", githubUsername).Delete(&models.UserMapping{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user mapping: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
