package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pr-needs-review/models"
	"pr-needs-review/services"
)

type config struct {
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// GitHub 認証（トークンか GitHub App のどちらか）
	GitHubToken    string `env:"GITHUB_TOKEN"`
	AppID          int64  `env:"GITHUB_APP_ID"`
	InstallationID int64  `env:"GITHUB_INSTALLATION_ID"`
	PrivateKeyPath string `env:"GITHUB_PRIVATE_KEY_PATH"`
	APIURL         string `env:"GITHUB_API_URL,default=https://api.github.com"`
	WebhookSecret  string `env:"GITHUB_WEBHOOK_SECRET"`

	// GitHub Actions から渡される値
	Repository   string `env:"GITHUB_REPOSITORY"`
	EventPath    string `env:"GITHUB_EVENT_PATH"`
	InputToken   string `env:"INPUT_TOKEN"`
	InputVerbose string `env:"INPUT_VERBOSE"`

	DatabasePath string `env:"DATABASE_PATH"`

	ReadyForReviewLabel string `env:"READY_FOR_REVIEW_LABEL"`
	NeedsChangesLabel   string `env:"NEEDS_CHANGES_LABEL"`
	BlessPhrase         string `env:"BLESS_PHRASE"`
	NeedsChangesComment string `env:"NEEDS_CHANGES_COMMENT"`

	SlackBotToken  string `env:"SLACK_BOT_TOKEN"`
	SlackChannelID string `env:"SLACK_CHANNEL_ID"`

	SweepConcurrency  int           `env:"SWEEP_CONCURRENCY,default=4"`
	RecordRetention   time.Duration `env:"RECORD_RETENTION,default=720h"`
	StabilizeAttempts int           `env:"STABILIZE_ATTEMPTS,default=0"`
	StabilizeBackoff  time.Duration `env:"STABILIZE_BACKOFF,default=30ms"`
}

// defaults は環境変数で指定されたラベル名や文言をデフォルト値に重ねる
func (c *config) defaults() services.Settings {
	s := services.DefaultSettings()
	if c.ReadyForReviewLabel != "" {
		s.ReadyForReviewLabel = c.ReadyForReviewLabel
	}
	if c.NeedsChangesLabel != "" {
		s.NeedsChangesLabel = c.NeedsChangesLabel
	}
	if c.BlessPhrase != "" {
		s.BlessPhrase = c.BlessPhrase
	}
	if c.NeedsChangesComment != "" {
		s.NeedsChangesComment = c.NeedsChangesComment
	}
	s.SlackChannelID = c.SlackChannelID
	return s
}

func (c *config) githubAuth() services.GitHubAuth {
	token := c.GitHubToken
	if token == "" {
		token = c.InputToken
	}
	return services.GitHubAuth{
		Token:          token,
		AppID:          c.AppID,
		InstallationID: c.InstallationID,
		PrivateKeyPath: c.PrivateKeyPath,
		APIURL:         c.APIURL,
	}
}

func loadConfig(ctx context.Context) (*config, error) {
	// .env があれば読み込む（既に設定されている環境変数は上書きしない）
	_ = godotenv.Load()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	if strings.EqualFold(cfg.InputVerbose, "true") {
		cfg.LogLevel = "debug"
	}
	return &cfg, nil
}

func newLogger(level string) *clog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return clog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// 未登録の UserMapping 検索などで record not found が出力されないようにする
var dbLogger = gormlogger.Default.LogMode(gormlogger.Silent)

func openDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&models.RepositoryConfig{}, &models.ReconcileRecord{}, &models.UserMapping{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// newRunner は設定から Runner を組み立てる。db は nil でもよい
func newRunner(ctx context.Context, cfg *config, db *gorm.DB) (*services.Runner, error) {
	client, err := services.NewGitHubClient(ctx, cfg.githubAuth())
	if err != nil {
		return nil, err
	}

	runner := &services.Runner{
		DB:       db,
		Defaults: cfg.defaults(),
		NewRepository: func(owner, repo string) services.Repository {
			return services.NewGitHubRepository(client, owner, repo)
		},
		StabilizeAttempts: cfg.StabilizeAttempts,
		StabilizeBackoff:  cfg.StabilizeBackoff,
	}
	if cfg.SlackBotToken != "" {
		runner.Notifier = services.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannelID, db)
	}
	return runner, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}

	logger := newLogger(cfg.LogLevel)
	ctx = clog.WithLogger(ctx, logger)

	root := newRootCommand(cfg, logger)
	if err := root.ExecuteContext(ctx); err != nil {
		clog.ErrorContextf(ctx, "%v", err)
		os.Exit(1)
	}
}

func newRootCommand(cfg *config, logger *clog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "pr-needs-review",
		Short:         "Keep awaiting-review / awaiting-changes labels in sync with pull request reviews",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(cfg, logger),
		newActionCommand(cfg),
		newReconcileCommand(cfg),
		newSweepCommand(cfg),
	)
	return root
}
