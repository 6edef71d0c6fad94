package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"pr-needs-review/models"
)

// Verdict はレビューとコメントを集約した結果
type Verdict struct {
	NeedsChanges       bool
	LastBlessed        *time.Time
	StatusByAuthor     map[string]models.ApprovalStatus
	ChangesRequestedBy []string
}

// Aggregator は PR のレビュー、レビュー依頼、コメントから修正が必要かを判定する
type Aggregator struct {
	repo                Repository
	blessPhrase         string
	needsChangesComment string
}

func NewAggregator(repo Repository, settings Settings) *Aggregator {
	return &Aggregator{
		repo:                repo,
		blessPhrase:         settings.BlessPhrase,
		needsChangesComment: settings.NeedsChangesComment,
	}
}

// NeedsChanges は PR に修正待ちのレビューが残っているかを判定する
func (a *Aggregator) NeedsChanges(ctx context.Context, number int) (*Verdict, error) {
	log := clog.FromContext(ctx).With("pr", number)

	comments, err := a.repo.ListIssueComments(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("fetch comments: %w", err)
	}
	log.Debugf("retrieved %d comments", len(comments))
	lastBlessed := LastBlessedAt(comments, a.blessPhrase, a.needsChangesComment)
	if lastBlessed != nil {
		log.Infof("changes last blessed at %s", lastBlessed.Format(time.RFC3339))
	}

	reviews, err := a.repo.ListReviews(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("fetch reviews: %w", err)
	}
	log.Debugf("the PR had %d reviews", len(reviews))

	pending, err := a.repo.ListRequestedReviewers(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("fetch requested reviewers: %w", err)
	}
	for _, user := range pending {
		log.Infof("ignoring any previous reviews from %s since a review is pending", user)
	}

	statuses := ApprovalStatusByAuthor(reviews, lastBlessed, pending)

	v := &Verdict{
		LastBlessed:    lastBlessed,
		StatusByAuthor: statuses,
	}
	for author, status := range statuses {
		if status == models.ApprovalChangesRequested {
			v.ChangesRequestedBy = append(v.ChangesRequestedBy, author)
		}
	}
	sort.Strings(v.ChangesRequestedBy)
	v.NeedsChanges = len(v.ChangesRequestedBy) > 0
	for _, author := range v.ChangesRequestedBy {
		log.Infof("needs changes from %s", author)
	}
	return v, nil
}

// LastBlessedAt はフレーズを含む最新のコメントの更新時刻を返す
// ボット自身の説明コメント（ignoreBody と一致する本文）は数えない
func LastBlessedAt(comments []models.Comment, blessPhrase, ignoreBody string) *time.Time {
	var last *time.Time
	ignore := strings.TrimSpace(ignoreBody)
	for _, c := range comments {
		if !ContainsPhrase(c.Body, blessPhrase) {
			continue
		}
		if ignore != "" && strings.TrimSpace(c.Body) == ignore {
			continue
		}
		if last == nil || c.UpdatedAt.After(*last) {
			t := c.UpdatedAt
			last = &t
		}
	}
	return last
}

// ApprovalStatusByAuthor はレビューを提出順に畳み込んでレビュアーごとの判定を作る
//   - since より前に提出されたレビューは捨てる
//   - COMMENTED のレビューは既存の判定を上書きしない
//   - レビュー依頼中のユーザーは過去のレビューに関係なく Pending にする
func ApprovalStatusByAuthor(reviews []models.Review, since *time.Time, pending []string) map[string]models.ApprovalStatus {
	statuses := make(map[string]models.ApprovalStatus)
	for _, r := range reviews {
		if since != nil && r.SubmittedAt.Before(*since) {
			continue
		}
		status, ok := models.StatusForReview(r.State)
		if !ok {
			continue
		}
		statuses[r.Author] = status
	}
	for _, user := range pending {
		statuses[user] = models.ApprovalPending
	}
	return statuses
}
