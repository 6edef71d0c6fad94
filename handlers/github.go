package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"pr-needs-review/services"
)

type GithubHandler struct {
	DB            *gorm.DB
	Runner        *services.Runner
	WebhookSecret string
}

func NewGitHubHandler(db *gorm.DB, runner *services.Runner, webhookSecret string) *GithubHandler {
	return &GithubHandler{
		DB:            db,
		Runner:        runner,
		WebhookSecret: webhookSecret,
	}
}

// RegisterRoutes はハンドラのルートを登録する
func (h *GithubHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/webhook", h.HandleWebhook)
	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	repos := r.Group("/repos/:owner/:repo")
	repos.GET("/config", h.GetRepositoryConfig)
	repos.PUT("/config", h.PutRepositoryConfig)
	repos.GET("/pulls/:number/history", h.GetHistory)

	r.PUT("/users/:login/slack", h.PutUserMapping)
	r.DELETE("/users/:login/slack", h.DeleteUserMapping)
}
