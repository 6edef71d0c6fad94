package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pr-needs-review/models"
)

// fakeRepository はメモリ上で PR の状態を持ち、呼び出しを記録する Repository
type fakeRepository struct {
	mu       sync.Mutex
	prs      map[int]*models.PullRequest
	reviews  map[int][]models.Review
	pending  map[int][]string
	comments map[int][]models.Comment
	errs     map[string]error
	calls    []string
	now      func() time.Time
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		prs:      map[int]*models.PullRequest{},
		reviews:  map[int][]models.Review{},
		pending:  map[int][]string{},
		comments: map[int][]models.Comment{},
		errs:     map[string]error{},
		now:      time.Now,
	}
}

func (f *fakeRepository) addPR(pr models.PullRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs[pr.Number] = &pr
}

func (f *fakeRepository) addReview(number int, author string, state models.ReviewState, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews[number] = append(f.reviews[number], models.Review{
		ID:          int64(len(f.reviews[number]) + 1),
		Author:      author,
		State:       state,
		SubmittedAt: at,
	})
}

func (f *fakeRepository) addComment(number int, author, body string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[number] = append(f.comments[number], models.Comment{
		ID:        int64(len(f.comments[number]) + 1),
		Author:    author,
		Body:      body,
		UpdatedAt: at,
	})
}

func (f *fakeRepository) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeRepository) record(op string, args ...any) error {
	call := op
	if len(args) > 0 {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			parts = append(parts, fmt.Sprint(a))
		}
		call += " " + strings.Join(parts, " ")
	}
	f.calls = append(f.calls, call)
	return f.errs[op]
}

// mutations は状態を変えた呼び出しだけを返す
func (f *fakeRepository) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, "AddLabel") || strings.HasPrefix(c, "RemoveLabel") || strings.HasPrefix(c, "CreateComment") {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRepository) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeRepository) labels(number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.prs[number]
	if !ok {
		return nil
	}
	out := append([]string{}, pr.Labels...)
	sort.Strings(out)
	return out
}

func (f *fakeRepository) commentCount(number int, body string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.comments[number] {
		if c.Body == body {
			n++
		}
	}
	return n
}

func (f *fakeRepository) GetPullRequest(_ context.Context, number int) (*models.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetPullRequest", number); err != nil {
		return nil, err
	}
	pr, ok := f.prs[number]
	if !ok {
		return nil, &TransportError{Op: "get pull request", Status: 404, Err: fmt.Errorf("not found")}
	}
	cp := *pr
	cp.Labels = append([]string{}, pr.Labels...)
	return &cp, nil
}

func (f *fakeRepository) ListReviews(_ context.Context, number int) ([]models.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListReviews", number); err != nil {
		return nil, err
	}
	return append([]models.Review{}, f.reviews[number]...), nil
}

func (f *fakeRepository) ListRequestedReviewers(_ context.Context, number int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListRequestedReviewers", number); err != nil {
		return nil, err
	}
	return append([]string{}, f.pending[number]...), nil
}

func (f *fakeRepository) ListIssueComments(_ context.Context, number int) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListIssueComments", number); err != nil {
		return nil, err
	}
	return append([]models.Comment{}, f.comments[number]...), nil
}

func (f *fakeRepository) AddLabel(_ context.Context, number int, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddLabel", number, label); err != nil {
		return err
	}
	if pr, ok := f.prs[number]; ok && !pr.HasLabel(label) {
		pr.Labels = append(pr.Labels, label)
	}
	return nil
}

func (f *fakeRepository) RemoveLabel(_ context.Context, number int, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RemoveLabel", number, label); err != nil {
		return err
	}
	if pr, ok := f.prs[number]; ok {
		kept := pr.Labels[:0]
		for _, l := range pr.Labels {
			if !strings.EqualFold(l, label) {
				kept = append(kept, l)
			}
		}
		pr.Labels = kept
	}
	return nil
}

func (f *fakeRepository) CreateComment(_ context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateComment", number); err != nil {
		return err
	}
	f.comments[number] = append(f.comments[number], models.Comment{
		ID:        int64(len(f.comments[number]) + 1),
		Author:    "github-actions[bot]",
		Body:      body,
		UpdatedAt: f.now(),
	})
	return nil
}

func (f *fakeRepository) ListOpenPullRequests(_ context.Context) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListOpenPullRequests"); err != nil {
		return nil, err
	}
	var numbers []int
	for n, pr := range f.prs {
		if pr.State == "" || pr.State == "open" {
			numbers = append(numbers, n)
		}
	}
	sort.Ints(numbers)
	return numbers, nil
}
