package services

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v71/github"
	"golang.org/x/oauth2"

	"pr-needs-review/models"
)

const listPageSize = 100

var prURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// GitHubAuth は GitHub クライアントの認証情報
// Token が優先され、なければ GitHub App のインストールトークンを使う
type GitHubAuth struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	APIURL         string
}

// NewGitHubClient は認証情報から GitHub クライアントを作成する
func NewGitHubClient(ctx context.Context, auth GitHubAuth) (*github.Client, error) {
	var httpClient *http.Client
	switch {
	case auth.Token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: auth.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	case auth.AppID != 0 && auth.InstallationID != 0 && auth.PrivateKeyPath != "":
		tr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, auth.AppID, auth.InstallationID, auth.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load github app key: %w", err)
		}
		httpClient = &http.Client{Transport: tr}
	default:
		clog.WarnContextf(ctx, "no github credentials configured, using an unauthenticated client")
	}

	client := github.NewClient(httpClient)
	if auth.APIURL != "" && strings.TrimRight(auth.APIURL, "/") != "https://api.github.com" {
		c, err := client.WithEnterpriseURLs(auth.APIURL, auth.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url %q: %w", auth.APIURL, err)
		}
		client = c
	}
	return client, nil
}

// ParseRepoAndPRNumber は PR の URL からオーナー、リポジトリ名、PR 番号を抽出する
func ParseRepoAndPRNumber(prURL string) (owner string, repo string, prNumber int, err error) {
	// https://github.com/owner/repo/pull/123 の形式を想定
	matches := prURLPattern.FindStringSubmatch(prURL)
	if len(matches) != 4 {
		return "", "", 0, fmt.Errorf("invalid PR URL format: %s", prURL)
	}

	prNumber, err = strconv.Atoi(matches[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to parse PR number: %w", err)
	}

	return matches[1], matches[2], prNumber, nil
}

// SplitRepoFullName は owner/repo を分割する
func SplitRepoFullName(fullName string) (owner string, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(fullName), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name: %q", fullName)
	}
	return parts[0], parts[1], nil
}

// GitHubRepository は go-github を使った Repository の実装
// 1 つのリポジトリに対してのみ操作する
type GitHubRepository struct {
	client *github.Client
	owner  string
	repo   string
}

func NewGitHubRepository(client *github.Client, owner, repo string) *GitHubRepository {
	return &GitHubRepository{
		client: client,
		owner:  owner,
		repo:   repo,
	}
}

func (g *GitHubRepository) FullName() string {
	return g.owner + "/" + g.repo
}

// expectSuccess は go-github の呼び出し結果を検証し、2xx 以外を TransportError にする
func expectSuccess(op string, resp *github.Response, err error) error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	if err != nil {
		return &TransportError{Op: op, Status: status, Err: err}
	}
	if status != 0 && (status < 200 || status > 299) {
		return &TransportError{Op: op, Status: status, Err: fmt.Errorf("unexpected response status")}
	}
	return nil
}

func (g *GitHubRepository) GetPullRequest(ctx context.Context, number int) (*models.PullRequest, error) {
	clog.FromContext(ctx).Debugf("fetching PR %s#%d", g.FullName(), number)
	pr, resp, err := g.client.PullRequests.Get(ctx, g.owner, g.repo, number)
	if err := expectSuccess("get pull request", resp, err); err != nil {
		return nil, err
	}
	return toPullRequest(pr), nil
}

func toPullRequest(pr *github.PullRequest) *models.PullRequest {
	out := &models.PullRequest{
		Number:         pr.GetNumber(),
		Author:         pr.GetUser().GetLogin(),
		Draft:          pr.GetDraft(),
		State:          pr.GetState(),
		MergeableState: pr.GetMergeableState(),
		HTMLURL:        pr.GetHTMLURL(),
		Title:          pr.GetTitle(),
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	for _, u := range pr.RequestedReviewers {
		out.RequestedReviewers = append(out.RequestedReviewers, u.GetLogin())
	}
	return out
}

func (g *GitHubRepository) ListReviews(ctx context.Context, number int) ([]models.Review, error) {
	var reviews []models.Review
	opts := &github.ListOptions{PerPage: listPageSize}
	for {
		page, resp, err := g.client.PullRequests.ListReviews(ctx, g.owner, g.repo, number, opts)
		if err := expectSuccess("list reviews", resp, err); err != nil {
			return nil, err
		}
		for _, r := range page {
			reviews = append(reviews, models.Review{
				ID:          r.GetID(),
				Author:      r.GetUser().GetLogin(),
				State:       models.ParseReviewState(r.GetState()),
				SubmittedAt: r.GetSubmittedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return reviews, nil
}

func (g *GitHubRepository) ListRequestedReviewers(ctx context.Context, number int) ([]string, error) {
	var users []string
	opts := &github.ListOptions{PerPage: listPageSize}
	for {
		reviewers, resp, err := g.client.PullRequests.ListReviewers(ctx, g.owner, g.repo, number, opts)
		if err := expectSuccess("list requested reviewers", resp, err); err != nil {
			return nil, err
		}
		for _, u := range reviewers.Users {
			users = append(users, u.GetLogin())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return users, nil
}

func (g *GitHubRepository) ListIssueComments(ctx context.Context, number int) ([]models.Comment, error) {
	var comments []models.Comment
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: listPageSize}}
	for {
		page, resp, err := g.client.Issues.ListComments(ctx, g.owner, g.repo, number, opts)
		if err := expectSuccess("list issue comments", resp, err); err != nil {
			return nil, err
		}
		for _, c := range page {
			comments = append(comments, models.Comment{
				ID:        c.GetID(),
				Author:    c.GetUser().GetLogin(),
				Body:      c.GetBody(),
				UpdatedAt: c.GetUpdatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

func (g *GitHubRepository) AddLabel(ctx context.Context, number int, label string) error {
	_, resp, err := g.client.Issues.AddLabelsToIssue(ctx, g.owner, g.repo, number, []string{label})
	return expectSuccess("add label", resp, err)
}

func (g *GitHubRepository) RemoveLabel(ctx context.Context, number int, label string) error {
	resp, err := g.client.Issues.RemoveLabelForIssue(ctx, g.owner, g.repo, number, label)
	return expectSuccess("remove label", resp, err)
}

func (g *GitHubRepository) CreateComment(ctx context.Context, number int, body string) error {
	_, resp, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, number, &github.IssueComment{Body: github.Ptr(body)})
	return expectSuccess("create comment", resp, err)
}

func (g *GitHubRepository) ListOpenPullRequests(ctx context.Context) ([]int, error) {
	var numbers []int
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}
	for {
		page, resp, err := g.client.PullRequests.List(ctx, g.owner, g.repo, opts)
		if err := expectSuccess("list pull requests", resp, err); err != nil {
			return nil, err
		}
		for _, pr := range page {
			numbers = append(numbers, pr.GetNumber())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return numbers, nil
}

// StabilizePullRequest は作成直後の PR のマージ状態が確定するまで待つ
// 確定しなくてもエラーにはせず、最後に取得した PR を返す
func StabilizePullRequest(ctx context.Context, repo Repository, number, attempts int, backoff time.Duration) (*models.PullRequest, bool, error) {
	var pr *models.PullRequest
	for attempt := 0; attempt < attempts; attempt++ {
		var err error
		pr, err = repo.GetPullRequest(ctx, number)
		if err != nil {
			return nil, false, err
		}
		if hasMergeState(pr) {
			return pr, true, nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return pr, false, ctx.Err()
		case <-time.After(backoff):
		}
	}
	clog.FromContext(ctx).With("pr", number).With("attempts", attempts).
		Warn("merge state remained unknown")
	return pr, false, nil
}

func hasMergeState(pr *models.PullRequest) bool {
	state := strings.ToLower(pr.MergeableState)
	return state != "" && state != "unknown"
}
