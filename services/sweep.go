package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// SweepResult は一括同期での 1 PR 分の結果
type SweepResult struct {
	Number int
	Result *Result
	Err    error
}

// Sweep はリポジトリの open な PR をすべて同期する
// 別々の PR は concurrency まで並行に処理するが、1 つの PR への呼び出しは順番に行う
// 一部の PR が失敗しても残りは処理し、失敗をまとめて返す
func (r *Runner) Sweep(ctx context.Context, repoFullName string, concurrency int) ([]SweepResult, error) {
	settings, err := r.settingsFor(repoFullName)
	if err != nil {
		return nil, err
	}
	if !settings.Active {
		clog.FromContext(ctx).With("repo", repoFullName).Info("repository inactive, skipping sweep")
		return nil, nil
	}

	repo, err := r.repository(repoFullName)
	if err != nil {
		return nil, err
	}

	numbers, err := repo.ListOpenPullRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open PRs: %w", err)
	}
	clog.FromContext(ctx).With("repo", repoFullName).Infof("sweeping %d open PRs", len(numbers))

	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]SweepResult, len(numbers))
	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, number := range numbers {
		g.Go(func() error {
			res, err := r.ReconcileNumber(gctx, repoFullName, number, TriggerSweep)
			results[i] = SweepResult{Number: number, Result: res, Err: err}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("PR %d: %w", number, err))
				mu.Unlock()
			}
			// 1 件の失敗で他の PR を止めない
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}
