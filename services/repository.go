package services

import (
	"context"
	"fmt"

	"pr-needs-review/models"
)

// Repository は判定と同期が必要とする PR / Issue へのアクセス手段
// 具体的な HTTP クライアントには依存しない
type Repository interface {
	GetPullRequest(ctx context.Context, number int) (*models.PullRequest, error)
	ListReviews(ctx context.Context, number int) ([]models.Review, error)
	ListRequestedReviewers(ctx context.Context, number int) ([]string, error)
	ListIssueComments(ctx context.Context, number int) ([]models.Comment, error)
	AddLabel(ctx context.Context, number int, label string) error
	RemoveLabel(ctx context.Context, number int, label string) error
	CreateComment(ctx context.Context, number int, body string) error
	ListOpenPullRequests(ctx context.Context) ([]int, error)
}

// TransportError はデータアクセスの呼び出しが 2xx 以外で終わったことを表す
// リトライはせず、その回の同期を中断する
type TransportError struct {
	Op     string
	Status int // レスポンスがなかった場合は 0
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed with status %d: %v", e.Op, e.Status, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
