package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pr-needs-review/models"
	"pr-needs-review/services"
)

func TestRepositoryConfigEndpoints(t *testing.T) {
	db := setupTestDB(t)
	router := setupRouter(t, db, "")

	// 設定がなければデフォルト値
	req, _ := http.NewRequest("GET", "/repos/owner/repo/config", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["overridden"])
	assert.Equal(t, services.DefaultReadyForReviewLabel, body["ready_for_review_label"])
	assert.Equal(t, true, body["is_active"])

	// 上書きを保存
	payload, _ := json.Marshal(map[string]interface{}{
		"needs_changes_label": "status: changes",
		"slack_channel_id":    "C12345",
	})
	req, _ = http.NewRequest("PUT", "/repos/owner/repo/config", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req, _ = http.NewRequest("GET", "/repos/owner/repo/config", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["overridden"])
	assert.Equal(t, services.DefaultReadyForReviewLabel, body["ready_for_review_label"])
	assert.Equal(t, "status: changes", body["needs_changes_label"])
	assert.Equal(t, "C12345", body["slack_channel_id"])

	// 無効化
	payload, _ = json.Marshal(map[string]interface{}{"is_active": false})
	req, _ = http.NewRequest("PUT", "/repos/owner/repo/config", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var config models.RepositoryConfig
	require.NoError(t, db.Where("repo_full_name = ?", "owner/repo").First(&config).Error)
	assert.False(t, config.IsActive)
}

func TestPutRepositoryConfig_Invalid(t *testing.T) {
	db := setupTestDB(t)
	router := setupRouter(t, db, "")

	payload, _ := json.Marshal(map[string]interface{}{
		"ready_for_review_label": "same",
		"needs_changes_label":    "SAME",
	})
	req, _ := http.NewRequest("PUT", "/repos/owner/repo/config", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// デフォルト値と重ねるとラベル名が重複する
	payload, _ = json.Marshal(map[string]interface{}{
		"ready_for_review_label": services.DefaultNeedsChangesLabel,
	})
	req, _ = http.NewRequest("PUT", "/repos/owner/repo/config", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req, _ = http.NewRequest("PUT", "/repos/owner/repo/config", bytes.NewBufferString("{broken"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	db.Model(&models.RepositoryConfig{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestGetHistory(t *testing.T) {
	db := setupTestDB(t)
	router := setupRouter(t, db, "")

	now := time.Now()
	for i, trigger := range []services.Trigger{services.TriggerOpened, services.TriggerReviewSubmitted} {
		rec := services.NewRecord("owner/repo", 5, trigger, &services.Result{Outcome: services.OutcomeReady}, nil)
		rec.CreatedAt = now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, services.SaveRecord(db, rec))
	}

	req, _ := http.NewRequest("GET", "/repos/owner/repo/pulls/5/history?limit=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Records []models.ReconcileRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Records, 1)
	assert.Equal(t, "review_submitted", body.Records[0].Trigger)

	req, _ = http.NewRequest("GET", "/repos/owner/repo/pulls/abc/history", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
