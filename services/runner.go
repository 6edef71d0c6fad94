package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"gorm.io/gorm"

	"pr-needs-review/models"
)

// RepositoryFactory はリポジトリ名から Repository を作る
type RepositoryFactory func(owner, repo string) Repository

// Runner はイベントの分類、同期、記録、通知をまとめて行う
type Runner struct {
	DB                *gorm.DB // nil なら設定の上書きと記録を行わない
	Defaults          Settings
	NewRepository     RepositoryFactory
	Notifier          Notifier // nil なら通知しない
	StabilizeAttempts int
	StabilizeBackoff  time.Duration
}

// Report は 1 イベント分の処理結果
type Report struct {
	Repo           string
	Classification Classification
	Result         *Result
}

// HandleEvent はイベントを分類し、必要なら対象の PR を同期する
// 同期しないイベントはエラーにせず Skip として返す
func (r *Runner) HandleEvent(ctx context.Context, e *models.Event, fallbackRepo string) (*Report, error) {
	repoFullName := e.RepoFullName()
	if repoFullName == "" {
		repoFullName = fallbackRepo
	}
	report := &Report{Repo: repoFullName}

	settings, err := r.settingsFor(repoFullName)
	if err != nil {
		return report, err
	}
	if !settings.Active {
		report.Classification = skip("repository inactive")
		r.logSkip(ctx, e, report)
		return report, nil
	}

	report.Classification = ClassifyEvent(e, settings.BlessPhrase)
	if report.Classification.Skip {
		r.logSkip(ctx, e, report)
		return report, nil
	}

	res, err := r.run(ctx, repoFullName, settings, report.Classification)
	report.Result = res
	return report, err
}

// ReconcileNumber は PR 番号を指定して同期する（CLI や一括同期用）
func (r *Runner) ReconcileNumber(ctx context.Context, repoFullName string, number int, trigger Trigger) (*Result, error) {
	settings, err := r.settingsFor(repoFullName)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, repoFullName, settings, Classification{Number: number, Trigger: trigger})
}

func (r *Runner) settingsFor(repoFullName string) (Settings, error) {
	if repoFullName == "" {
		return Settings{}, errors.New("repository is unknown")
	}
	settings, err := ResolveSettings(r.DB, repoFullName, r.Defaults)
	if err != nil {
		return settings, err
	}
	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("invalid settings for %s: %w", repoFullName, err)
	}
	return settings, nil
}

func (r *Runner) repository(repoFullName string) (Repository, error) {
	owner, name, err := SplitRepoFullName(repoFullName)
	if err != nil {
		return nil, err
	}
	return r.NewRepository(owner, name), nil
}

func (r *Runner) run(ctx context.Context, repoFullName string, settings Settings, c Classification) (*Result, error) {
	ctx = clog.WithValues(ctx, "repo", repoFullName, "trigger", string(c.Trigger))
	log := clog.FromContext(ctx)

	repo, err := r.repository(repoFullName)
	if err != nil {
		return nil, err
	}

	var opts []Option
	if r.StabilizeAttempts > 0 {
		opts = append(opts, WithStabilization(r.StabilizeAttempts, r.StabilizeBackoff))
	}

	res, runErr := NewReconciler(repo, settings, opts...).Run(ctx, c)

	outcome := OutcomeFailed
	if runErr == nil && res != nil {
		outcome = res.Outcome
	}
	reconcileCounter.WithLabelValues(string(c.Trigger), string(outcome)).Inc()

	if err := SaveRecord(r.DB, NewRecord(repoFullName, c.Number, c.Trigger, res, runErr)); err != nil {
		log.Errorf("%v", err)
	}

	if runErr != nil {
		log.Errorf("reconciliation failed: %v", runErr)
		return res, runErr
	}

	log.With("outcome", string(res.Outcome)).
		With("labels_added", res.LabelsAdded).
		With("labels_removed", res.LabelsRemoved).
		With("comment_posted", res.CommentPosted).
		Info("reconciliation finished")

	if r.Notifier != nil {
		if err := r.Notifier.Notify(ctx, repoFullName, settings, res); err != nil {
			log.Warnf("notification failed: %v", err)
		}
	}
	return res, nil
}

func (r *Runner) logSkip(ctx context.Context, e *models.Event, report *Report) {
	skippedEventCounter.WithLabelValues(report.Classification.Reason).Inc()
	action := ""
	if e != nil && e.Action != nil {
		action = *e.Action
	}
	clog.FromContext(ctx).With("repo", report.Repo).With("action", action).
		Infof("event ignored: %s", report.Classification.Reason)
}
