package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pr-needs-review/services"
)

const defaultHistoryLimit = 50

// GetHistory は PR の同期履歴を新しい順に返す
func (h *GithubHandler) GetHistory(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pull request number"})
		return
	}

	limit := defaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := services.ListRecords(h.DB, repoFullName(c), number, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}
