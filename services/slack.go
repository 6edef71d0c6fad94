package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/slack-go/slack"
	"gorm.io/gorm"

	"pr-needs-review/models"
)

// Notifier は修正待ちの開始と終了を外部に知らせる
type Notifier interface {
	Notify(ctx context.Context, repoFullName string, settings Settings, res *Result) error
}

// SlackNotifier は Slack チャンネルへ通知する Notifier
type SlackNotifier struct {
	client         *slack.Client
	db             *gorm.DB
	defaultChannel string
}

func NewSlackNotifier(token, defaultChannel string, db *gorm.DB, opts ...slack.Option) *SlackNotifier {
	return &SlackNotifier{
		client:         slack.New(token, opts...),
		db:             db,
		defaultChannel: defaultChannel,
	}
}

// Notify は修正待ちが始まったとき、または終わったときだけメッセージを送る
func (n *SlackNotifier) Notify(ctx context.Context, repoFullName string, settings Settings, res *Result) error {
	if res == nil || res.PullRequest == nil || (!res.EpisodeStarted && !res.EpisodeEnded) {
		return nil
	}

	channel := settings.SlackChannelID
	if channel == "" {
		channel = n.defaultChannel
	}
	if channel == "" {
		return nil
	}

	blocks := BuildEpisodeBlocks(repoFullName, res, n.mention(res.PullRequest.Author))
	_, ts, err := n.client.PostMessageContext(ctx, channel,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(episodeFallbackText(repoFullName, res), false),
	)
	if err != nil {
		if IsChannelRelatedError(err) {
			n.detachChannel(ctx, repoFullName, channel)
		}
		return fmt.Errorf("slack message failed (channel: %s): %w", channel, err)
	}

	clog.FromContext(ctx).With("channel", channel).With("ts", ts).Info("slack message sent")
	return nil
}

// mention は GitHub ユーザーに対応する Slack ユーザーがいればメンションを返す
func (n *SlackNotifier) mention(githubUser string) string {
	if githubUser == "" {
		return ""
	}
	if n.db != nil {
		var mapping models.UserMapping
		if err := n.db.Where("github_username = ?", githubUser).First(&mapping).Error; err == nil && mapping.SlackUserID != "" {
			return fmt.Sprintf("<@%s>", mapping.SlackUserID)
		}
	}
	return githubUser
}

// detachChannel はアーカイブ済みなどで投稿できないチャンネルをリポジトリ設定から外す
func (n *SlackNotifier) detachChannel(ctx context.Context, repoFullName, channel string) {
	if n.db == nil {
		return
	}
	result := n.db.Model(&models.RepositoryConfig{}).
		Where("repo_full_name = ? AND slack_channel_id = ?", repoFullName, channel).
		Update("slack_channel_id", "")
	if result.Error != nil {
		clog.FromContext(ctx).Errorf("repository config update error: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		clog.FromContext(ctx).Warnf("slack channel %s is not usable, removed from %s config", channel, repoFullName)
	}
}

// IsChannelRelatedError はチャンネル側の問題（アーカイブ済み、存在しない、権限なし）かを判定する
func IsChannelRelatedError(err error) bool {
	if err == nil {
		return false
	}
	var slackErr slack.SlackErrorResponse
	msg := err.Error()
	if errors.As(err, &slackErr) {
		msg = slackErr.Err
	}
	for _, code := range []string{"is_archived", "channel_not_found", "not_in_channel"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// BuildEpisodeBlocks は通知メッセージのブロックを組み立てる
func BuildEpisodeBlocks(repoFullName string, res *Result, author string) []slack.Block {
	pr := res.PullRequest
	b := NewSlackBlockBuilder()

	if res.EpisodeStarted {
		text := fmt.Sprintf("*🛠 PRに修正依頼が届きました*\n\n*タイトル*: %s\n*リンク*: <%s>", pr.Title, pr.HTMLURL)
		if author != "" {
			text = author + " " + text
		}
		b.AddSection(text)
		if res.Verdict != nil && len(res.Verdict.ChangesRequestedBy) > 0 {
			b.AddContext("修正依頼: " + strings.Join(res.Verdict.ChangesRequestedBy, ", "))
		}
	} else {
		b.AddSection(fmt.Sprintf("*🔍 修正が完了し、再レビュー待ちになりました*\n\n*タイトル*: %s\n*リンク*: <%s>", pr.Title, pr.HTMLURL))
	}

	b.AddContext(fmt.Sprintf("%s#%d", repoFullName, pr.Number))
	return b.Build()
}

func episodeFallbackText(repoFullName string, res *Result) string {
	if res.EpisodeStarted {
		return fmt.Sprintf("%s#%d needs changes", repoFullName, res.PullRequest.Number)
	}
	return fmt.Sprintf("%s#%d is awaiting review again", repoFullName, res.PullRequest.Number)
}
