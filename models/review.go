package models

import (
	"strings"
	"time"
)

// ReviewState はプラットフォームが返すレビュー状態を閉じた列挙として表す
type ReviewState int

const (
	ReviewStateOther ReviewState = iota
	ReviewStateApproved
	ReviewStateChangesRequested
	ReviewStateCommented
)

// ParseReviewState は GitHub のレビュー状態文字列（大文字小文字は問わない）を変換する
// 未知の状態は ReviewStateOther になる
func ParseReviewState(s string) ReviewState {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVED":
		return ReviewStateApproved
	case "CHANGES_REQUESTED":
		return ReviewStateChangesRequested
	case "COMMENTED":
		return ReviewStateCommented
	default:
		return ReviewStateOther
	}
}

func (s ReviewState) String() string {
	switch s {
	case ReviewStateApproved:
		return "APPROVED"
	case ReviewStateChangesRequested:
		return "CHANGES_REQUESTED"
	case ReviewStateCommented:
		return "COMMENTED"
	case ReviewStateOther:
		return "OTHER"
	}
	return "OTHER"
}

// IsIndicative はレビューが承認または変更要求を主張しているかを返す
// コメントのみのレビューは判定に使わない
func (s ReviewState) IsIndicative() bool {
	return s != ReviewStateCommented
}

// ApprovalStatus はレビュアーごとの最新の判定
type ApprovalStatus int

const (
	// レビューが再依頼されていて、まだ新しいレビューがない
	ApprovalPending ApprovalStatus = iota
	ApprovalApproved
	ApprovalChangesRequested
)

func (a ApprovalStatus) String() string {
	switch a {
	case ApprovalApproved:
		return "approved"
	case ApprovalChangesRequested:
		return "changes_requested"
	case ApprovalPending:
		return "pending"
	}
	return "pending"
}

// StatusForReview はレビュー状態から判定を導く
// 判定に使わないレビュー（COMMENTED）の場合は ok=false を返す
func StatusForReview(state ReviewState) (status ApprovalStatus, ok bool) {
	switch state {
	case ReviewStateApproved:
		return ApprovalApproved, true
	case ReviewStateChangesRequested, ReviewStateOther:
		return ApprovalChangesRequested, true
	case ReviewStateCommented:
		return ApprovalPending, false
	}
	return ApprovalPending, false
}

// PullRequest は判定に必要な PR の情報だけを持つ
// 毎回取得し直し、呼び出しをまたいでキャッシュしない
type PullRequest struct {
	Number             int
	Author             string
	Draft              bool
	State              string
	MergeableState     string
	HTMLURL            string
	Title              string
	Labels             []string
	RequestedReviewers []string
}

// HasLabel はラベルの有無を大文字小文字を区別せずに判定する
func (pr *PullRequest) HasLabel(label string) bool {
	for _, l := range pr.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

type Review struct {
	ID          int64
	Author      string
	State       ReviewState
	SubmittedAt time.Time
}

type Comment struct {
	ID        int64
	Author    string
	Body      string
	UpdatedAt time.Time
}
