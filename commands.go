package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"pr-needs-review/handlers"
	"pr-needs-review/models"
	"pr-needs-review/services"
)

const defaultDatabasePath = "review_state.db"

func newServeCommand(cfg *config, logger *clog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config, logger *clog.Logger) error {
	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = defaultDatabasePath
	}
	db, err := openDB(dbPath)
	if err != nil {
		return err
	}

	runner, err := newRunner(ctx, cfg, db)
	if err != nil {
		return err
	}

	if cfg.WebhookSecret == "" {
		clog.WarnContextf(ctx, "GITHUB_WEBHOOK_SECRET is not set, webhook signatures are not verified")
	}

	// 古い監査レコードを定期的に削除
	go services.RunRecordCleanup(ctx, db, cfg.RecordRetention, time.Hour)

	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))
	handlers.NewGitHubHandler(db, runner, cfg.WebhookSecret).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		clog.InfoContextf(ctx, "server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	clog.InfoContextf(ctx, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// cliDB は DATABASE_PATH が指定されている場合だけ DB を開く
func cliDB(cfg *config) (*gorm.DB, error) {
	if cfg.DatabasePath == "" {
		return nil, nil
	}
	return openDB(cfg.DatabasePath)
}

func newActionCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "action",
		Short: "Handle the event of a GitHub Actions run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cfg.EventPath == "" {
				return errors.New("GITHUB_EVENT_PATH is not set")
			}
			payload, err := os.ReadFile(cfg.EventPath)
			if err != nil {
				return fmt.Errorf("read event payload: %w", err)
			}
			event, err := models.ParseEvent(payload)
			if err != nil {
				return err
			}

			db, err := cliDB(cfg)
			if err != nil {
				return err
			}
			runner, err := newRunner(ctx, cfg, db)
			if err != nil {
				return err
			}

			report, err := runner.HandleEvent(ctx, event, cfg.Repository)
			if err != nil {
				return err
			}
			if report.Classification.Skip {
				clog.InfoContextf(ctx, "nothing to do: %s", report.Classification.Reason)
			}
			return nil
		},
	}
}

func newReconcileCommand(cfg *config) *cobra.Command {
	var repo string
	cmd := &cobra.Command{
		Use:   "reconcile <number|pull request URL>",
		Short: "Reconcile the labels of a single pull request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			repoFullName, number, err := parseTarget(args[0], repo)
			if err != nil {
				return err
			}

			db, err := cliDB(cfg)
			if err != nil {
				return err
			}
			runner, err := newRunner(ctx, cfg, db)
			if err != nil {
				return err
			}

			res, err := runner.ReconcileNumber(ctx, repoFullName, number, services.TriggerManual)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s#%d: %s\n", repoFullName, number, res.Outcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", cfg.Repository, "repository in owner/name form")
	return cmd
}

// parseTarget は PR 番号か PR の URL から対象のリポジトリと番号を決める
func parseTarget(arg, repo string) (string, int, error) {
	if number, err := strconv.Atoi(arg); err == nil {
		if repo == "" {
			return "", 0, errors.New("--repo is required when a PR number is given")
		}
		if number <= 0 {
			return "", 0, fmt.Errorf("invalid PR number: %d", number)
		}
		return repo, number, nil
	}
	owner, name, number, err := services.ParseRepoAndPRNumber(arg)
	if err != nil {
		return "", 0, err
	}
	return owner + "/" + name, number, nil
}

func newSweepCommand(cfg *config) *cobra.Command {
	var (
		repo        string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile every open pull request of a repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if repo == "" {
				return errors.New("--repo is required")
			}

			db, err := cliDB(cfg)
			if err != nil {
				return err
			}
			runner, err := newRunner(ctx, cfg, db)
			if err != nil {
				return err
			}

			results, err := runner.Sweep(ctx, repo, concurrency)
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s#%d: error: %v\n", repo, r.Number, r.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s#%d: %s\n", repo, r.Number, r.Result.Outcome)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&repo, "repo", cfg.Repository, "repository in owner/name form")
	cmd.Flags().IntVar(&concurrency, "concurrency", cfg.SweepConcurrency, "number of pull requests reconciled in parallel")
	return cmd
}
