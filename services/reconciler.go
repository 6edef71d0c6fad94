package services

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"pr-needs-review/models"
)

// Outcome は同期後に PR が置かれた状態
type Outcome string

const (
	OutcomeDraft        Outcome = "draft"
	OutcomeNeedsChanges Outcome = "needs_changes"
	OutcomeReady        Outcome = "ready"
	OutcomeFailed       Outcome = "failed"
)

// Result は 1 回の同期で何が起きたか
type Result struct {
	PullRequest    *models.PullRequest
	Outcome        Outcome
	Verdict        *Verdict
	LabelsAdded    []string
	LabelsRemoved  []string
	CommentPosted  bool
	EpisodeStarted bool // 修正待ちになった（説明コメントを投稿した）
	EpisodeEnded   bool // 修正待ちラベルを外してレビュー待ちに戻した
}

// Changed はラベルかコメントに変更があったかを返す
func (r *Result) Changed() bool {
	return r.CommentPosted || len(r.LabelsAdded) > 0 || len(r.LabelsRemoved) > 0
}

// Reconciler は判定結果に合わせてラベルとコメントを最小限の操作で揃える
// 同じ PR に対して同時に複数回走ることは想定しない
type Reconciler struct {
	repo       Repository
	aggregator *Aggregator
	settings   Settings

	// 作成直後の PR のマージ状態を待つ回数（0 なら待たない）
	stabilizeAttempts int
	stabilizeBackoff  time.Duration
}

// Option は Reconciler の設定
type Option func(*Reconciler)

// WithStabilization は opened イベントでマージ状態の確定を待つようにする
func WithStabilization(attempts int, backoff time.Duration) Option {
	return func(r *Reconciler) {
		r.stabilizeAttempts = attempts
		r.stabilizeBackoff = backoff
	}
}

func NewReconciler(repo Repository, settings Settings, opts ...Option) *Reconciler {
	r := &Reconciler{
		repo:       repo,
		aggregator: NewAggregator(repo, settings),
		settings:   settings,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run は分類済みのイベントに応じた同期を行う
func (r *Reconciler) Run(ctx context.Context, c Classification) (*Result, error) {
	switch c.Trigger {
	case TriggerConvertedToDraft:
		return r.RetractReadyLabel(ctx, c.Number)
	case TriggerOpened:
		if r.stabilizeAttempts > 0 {
			pr, _, err := StabilizePullRequest(ctx, r.repo, c.Number, r.stabilizeAttempts, r.stabilizeBackoff)
			if err != nil {
				return nil, fmt.Errorf("fetch PR %d: %w", c.Number, err)
			}
			return r.reconcilePullRequest(ctx, pr)
		}
		return r.Reconcile(ctx, c.Number)
	default:
		return r.Reconcile(ctx, c.Number)
	}
}

// Reconcile は PR を取得し直し、レビュー状態を判定してラベルを揃える
func (r *Reconciler) Reconcile(ctx context.Context, number int) (*Result, error) {
	pr, err := r.repo.GetPullRequest(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("fetch PR %d: %w", number, err)
	}
	return r.reconcilePullRequest(ctx, pr)
}

func (r *Reconciler) reconcilePullRequest(ctx context.Context, pr *models.PullRequest) (*Result, error) {
	log := clog.FromContext(ctx).With("pr", pr.Number)

	if pr.Draft {
		// ドラフトはレビュー結果に関係なくレビュー待ちにしない
		log.Info("draft PR, ensuring ready for review label is not present")
		res := &Result{PullRequest: pr, Outcome: OutcomeDraft}
		if err := r.ensureLabel(ctx, pr, r.settings.ReadyForReviewLabel, false, res); err != nil {
			return res, err
		}
		return res, nil
	}

	verdict, err := r.aggregator.NeedsChanges(ctx, pr.Number)
	if err != nil {
		return nil, err
	}

	res, err := r.ApplyState(ctx, pr, verdict.NeedsChanges)
	if res != nil {
		res.Verdict = verdict
	}
	return res, err
}

// ApplyState は needsChanges に合わせてラベルを揃える
// 修正待ちに切り替わるときだけ、ラベルより先に説明コメントを投稿する
func (r *Reconciler) ApplyState(ctx context.Context, pr *models.PullRequest, needsChanges bool) (*Result, error) {
	log := clog.FromContext(ctx).With("pr", pr.Number)
	res := &Result{PullRequest: pr}

	if needsChanges {
		res.Outcome = OutcomeNeedsChanges
		if pr.HasLabel(r.settings.ReadyForReviewLabel) {
			log.Info("PR did not previously need changes, adding comment describing process")
			if err := r.repo.CreateComment(ctx, pr.Number, r.settings.NeedsChangesComment); err != nil {
				return res, fmt.Errorf("post needs-changes comment: %w", err)
			}
			commentCounter.Inc()
			res.CommentPosted = true
			res.EpisodeStarted = true
		} else {
			log.Debug("the PR already needed changes")
		}
		if err := r.ensureLabel(ctx, pr, r.settings.NeedsChangesLabel, true, res); err != nil {
			return res, err
		}
		if err := r.ensureLabel(ctx, pr, r.settings.ReadyForReviewLabel, false, res); err != nil {
			return res, err
		}
		return res, nil
	}

	res.Outcome = OutcomeReady
	log.Debug("the PR does not need changes and should be awaiting review")
	if err := r.ensureLabel(ctx, pr, r.settings.ReadyForReviewLabel, true, res); err != nil {
		return res, err
	}
	hadNeedsChanges := pr.HasLabel(r.settings.NeedsChangesLabel)
	if err := r.ensureLabel(ctx, pr, r.settings.NeedsChangesLabel, false, res); err != nil {
		return res, err
	}
	res.EpisodeEnded = hadNeedsChanges
	return res, nil
}

// RetractReadyLabel はドラフトに戻された PR からレビュー待ちラベルだけを外す
func (r *Reconciler) RetractReadyLabel(ctx context.Context, number int) (*Result, error) {
	pr, err := r.repo.GetPullRequest(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("fetch PR %d: %w", number, err)
	}
	clog.FromContext(ctx).With("pr", number).Info("PR moved into draft, removing any ready for review label")
	res := &Result{PullRequest: pr, Outcome: OutcomeDraft}
	if err := r.ensureLabel(ctx, pr, r.settings.ReadyForReviewLabel, false, res); err != nil {
		return res, err
	}
	return res, nil
}

// ensureLabel はラベルの有無が期待通りでなければ追加または削除する
// 既に期待通りなら API は呼ばない
func (r *Reconciler) ensureLabel(ctx context.Context, pr *models.PullRequest, label string, expected bool, res *Result) error {
	log := clog.FromContext(ctx).With("pr", pr.Number).With("label", label)

	if pr.HasLabel(label) == expected {
		log.Debugf("label already in expected state (present=%t), no change is needed", expected)
		return nil
	}

	if expected {
		log.Info("adding label")
		if err := r.repo.AddLabel(ctx, pr.Number, label); err != nil {
			return fmt.Errorf("add label %q: %w", label, err)
		}
		labelOperationCounter.WithLabelValues("add", label).Inc()
		res.LabelsAdded = append(res.LabelsAdded, label)
		return nil
	}

	log.Info("removing label")
	if err := r.repo.RemoveLabel(ctx, pr.Number, label); err != nil {
		return fmt.Errorf("remove label %q: %w", label, err)
	}
	labelOperationCounter.WithLabelValues("remove", label).Inc()
	res.LabelsRemoved = append(res.LabelsRemoved, label)
	return nil
}
