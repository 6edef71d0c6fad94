package handlers

import (
	"errors"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v71/github"

	"pr-needs-review/models"
	"pr-needs-review/services"
)

// HandleWebhook は GitHub の webhook を受け取り、対象の PR のラベルを同期する
func (h *GithubHandler) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	// 署名を検証してペイロードを取り出す（シークレット未設定なら検証しない）
	payload, err := github.ValidatePayload(c.Request, []byte(h.WebhookSecret))
	if err != nil {
		clog.FromContext(ctx).Warnf("invalid webhook payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	eventType := github.WebHookType(c.Request)
	if eventType == "ping" {
		c.JSON(http.StatusOK, gin.H{"status": "pong"})
		return
	}

	event, err := models.ParseEvent(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot parse webhook"})
		return
	}

	ctx = clog.WithValues(ctx, "event", eventType)
	report, err := h.Runner.HandleEvent(ctx, event, "")
	if err != nil {
		status := http.StatusInternalServerError
		var te *services.TransportError
		if errors.As(err, &te) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if report.Classification.Skip {
		c.JSON(http.StatusOK, gin.H{"status": "skipped", "reason": report.Classification.Reason})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "reconciled",
		"pr":             report.Classification.Number,
		"trigger":        report.Classification.Trigger,
		"outcome":        report.Result.Outcome,
		"labels_added":   report.Result.LabelsAdded,
		"labels_removed": report.Result.LabelsRemoved,
		"comment_posted": report.Result.CommentPosted,
	})
}
