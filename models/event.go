package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v71/github"
)

// Event は webhook や Actions から届くイベントペイロード
// フィールドの有無でイベントの種類を判別するので、すべてポインタで持つ
type Event struct {
	Action      *string                   `json:"action,omitempty"`
	PullRequest *github.PullRequest       `json:"pull_request,omitempty"`
	Review      *github.PullRequestReview `json:"review,omitempty"`
	Comment     *github.IssueComment      `json:"comment,omitempty"`
	Issue       *github.Issue             `json:"issue,omitempty"`
	Repo        *github.Repository        `json:"repository,omitempty"`
	Sender      *github.User              `json:"sender,omitempty"`
}

// ParseEvent は生の JSON ペイロードを Event に変換する
func ParseEvent(payload []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("failed to parse event payload: %w", err)
	}
	return &e, nil
}

// RepoFullName は owner/repo 形式のリポジトリ名を返す
func (e *Event) RepoFullName() string {
	if e == nil || e.Repo == nil {
		return ""
	}
	if e.Repo.GetFullName() != "" {
		return e.Repo.GetFullName()
	}
	if e.Repo.GetOwner().GetLogin() == "" || e.Repo.GetName() == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", e.Repo.GetOwner().GetLogin(), e.Repo.GetName())
}
