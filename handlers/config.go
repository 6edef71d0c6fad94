package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pr-needs-review/models"
	"pr-needs-review/services"
)

type repositoryConfigRequest struct {
	ReadyForReviewLabel string `json:"ready_for_review_label"`
	NeedsChangesLabel   string `json:"needs_changes_label"`
	BlessPhrase         string `json:"bless_phrase"`
	NeedsChangesComment string `json:"needs_changes_comment"`
	SlackChannelID      string `json:"slack_channel_id"`
	IsActive            *bool  `json:"is_active"`
}

func repoFullName(c *gin.Context) string {
	return c.Param("owner") + "/" + c.Param("repo")
}

// GetRepositoryConfig はデフォルト値を反映したリポジトリの設定を返す
func (h *GithubHandler) GetRepositoryConfig(c *gin.Context) {
	repo := repoFullName(c)
	settings, err := services.ResolveSettings(h.DB, repo, h.Runner.Defaults)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	overridden := true
	if _, err := services.GetRepositoryConfig(h.DB, repo); errors.Is(err, gorm.ErrRecordNotFound) {
		overridden = false
	}

	c.JSON(http.StatusOK, gin.H{
		"repository":             repo,
		"overridden":             overridden,
		"ready_for_review_label": settings.ReadyForReviewLabel,
		"needs_changes_label":    settings.NeedsChangesLabel,
		"bless_phrase":           settings.BlessPhrase,
		"needs_changes_comment":  settings.NeedsChangesComment,
		"slack_channel_id":       settings.SlackChannelID,
		"is_active":              settings.Active,
	})
}

// PutRepositoryConfig はリポジトリの設定を作成または更新する
func (h *GithubHandler) PutRepositoryConfig(c *gin.Context) {
	var req repositoryConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	config, err := services.SaveRepositoryConfig(h.DB, models.RepositoryConfig{
		RepoFullName:        repoFullName(c),
		ReadyForReviewLabel: req.ReadyForReviewLabel,
		NeedsChangesLabel:   req.NeedsChangesLabel,
		BlessPhrase:         req.BlessPhrase,
		NeedsChangesComment: req.NeedsChangesComment,
		SlackChannelID:      req.SlackChannelID,
		IsActive:            active,
	}, h.Runner.Defaults)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, config)
}
