package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pr-needs-review/services"
)

type userMappingRequest struct {
	SlackUserID string `json:"slack_user_id"`
}

// PutUserMapping は GitHub ユーザーに Slack ユーザーを対応付ける
func (h *GithubHandler) PutUserMapping(c *gin.Context) {
	var req userMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	mapping, err := services.SaveUserMapping(h.DB, c.Param("login"), req.SlackUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"github_username": mapping.GithubUsername,
		"slack_user_id":   mapping.SlackUserID,
	})
}

func (h *GithubHandler) DeleteUserMapping(c *gin.Context) {
	err := services.DeleteUserMapping(h.DB, c.Param("login"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "mapping not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
