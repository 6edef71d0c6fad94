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

const (
	DefaultReadyForReviewLabel = "awaiting-review"
	DefaultNeedsChangesLabel   = "awaiting-changes"
	DefaultBlessPhrase         = "I have made the requested changes; please review again"
)

// DefaultNeedsChangesComment は修正依頼を受けた PR に一度だけ投稿する説明文
var DefaultNeedsChangesComment = "Your PR has received a review that is requesting changes.  Please make the changes requested." +
	" Once you have done this please leave a comment on this pull request containing the phrase" +
	" `" + DefaultBlessPhrase + "`.  This will relabel the pull" +
	" request to let reviewers know the changes have been completed."

// Settings は 1 リポジトリ分のラベル名とコメント文言
type Settings struct {
	ReadyForReviewLabel string
	NeedsChangesLabel   string
	BlessPhrase         string
	NeedsChangesComment string
	SlackChannelID      string
	Active              bool
}

func DefaultSettings() Settings {
	return Settings{
		ReadyForReviewLabel: DefaultReadyForReviewLabel,
		NeedsChangesLabel:   DefaultNeedsChangesLabel,
		BlessPhrase:         DefaultBlessPhrase,
		NeedsChangesComment: DefaultNeedsChangesComment,
		Active:              true,
	}
}

// Validate は同期に必要な値が揃っているかを確認する
func (s Settings) Validate() error {
	if s.ReadyForReviewLabel == "" || s.NeedsChangesLabel == "" {
		return errors.New("both label names are required")
	}
	if strings.EqualFold(s.ReadyForReviewLabel, s.NeedsChangesLabel) {
		return fmt.Errorf("label names must differ: %q", s.ReadyForReviewLabel)
	}
	if s.BlessPhrase == "" {
		return errors.New("bless phrase is required")
	}
	if s.NeedsChangesComment == "" {
		return errors.New("needs-changes comment is required")
	}
	return nil
}

// GetRepositoryConfig はリポジトリの設定を取得する
func GetRepositoryConfig(db *gorm.DB, repoFullName string) (*models.RepositoryConfig, error) {
	var config models.RepositoryConfig

	err := db.Where("repo_full_name = ?", repoFullName).First(&config).Error
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// ResolveSettings はデフォルト値にリポジトリごとの上書きを重ねる
// db が nil の場合や設定がない場合はデフォルト値をそのまま使う
func ResolveSettings(db *gorm.DB, repoFullName string, defaults Settings) (Settings, error) {
	if db == nil {
		return defaults, nil
	}

	config, err := GetRepositoryConfig(db, repoFullName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("failed to load repository config: %w", err)
	}

	return applyOverrides(defaults, config), nil
}

// applyOverrides はデフォルト値に設定の空でない値を重ねる
func applyOverrides(defaults Settings, config *models.RepositoryConfig) Settings {
	s := defaults
	if config.ReadyForReviewLabel != "" {
		s.ReadyForReviewLabel = config.ReadyForReviewLabel
	}
	if config.NeedsChangesLabel != "" {
		s.NeedsChangesLabel = config.NeedsChangesLabel
	}
	if config.BlessPhrase != "" {
		s.BlessPhrase = config.BlessPhrase
	}
	if config.NeedsChangesComment != "" {
		s.NeedsChangesComment = config.NeedsChangesComment
	}
	if config.SlackChannelID != "" {
		s.SlackChannelID = config.SlackChannelID
	}
	s.Active = config.IsActive
	return s
}

// SaveRepositoryConfig はリポジトリの設定を作成または更新する
// デフォルト値と重ねた結果が同期に使えない設定は保存しない
func SaveRepositoryConfig(db *gorm.DB, input models.RepositoryConfig, defaults Settings) (*models.RepositoryConfig, error) {
	if _, _, err := SplitRepoFullName(input.RepoFullName); err != nil {
		return nil, err
	}
	if err := applyOverrides(defaults, &input).Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings for %s: %w", input.RepoFullName, err)
	}

	existing, err := GetRepositoryConfig(db, input.RepoFullName)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	if existing == nil {
		input.ID = uuid.NewString()
		input.CreatedAt = now
		input.UpdatedAt = now
		if err := db.Create(&input).Error; err != nil {
			return nil, fmt.Errorf("failed to create repository config: %w", err)
		}
		return &input, nil
	}

	existing.ReadyForReviewLabel = input.ReadyForReviewLabel
	existing.NeedsChangesLabel = input.NeedsChangesLabel
	existing.BlessPhrase = input.BlessPhrase
	existing.NeedsChangesComment = input.NeedsChangesComment
	existing.SlackChannelID = input.SlackChannelID
	existing.IsActive = input.IsActive
	existing.UpdatedAt = now
	if err := db.Save(existing).Error; err != nil {
		return nil, fmt.Errorf("failed to update repository config: %w", err)
	}
	return existing, nil
}
