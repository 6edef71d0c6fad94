package services

import (
	"strings"

	"pr-needs-review/models"
)

// Trigger は同期を起こしたきっかけ
type Trigger string

const (
	TriggerOpened           Trigger = "opened"
	TriggerReadyForReview   Trigger = "ready_for_review"
	TriggerConvertedToDraft Trigger = "converted_to_draft"
	TriggerReviewSubmitted  Trigger = "review_submitted"
	TriggerBlessComment     Trigger = "bless_comment"
	TriggerManual           Trigger = "manual"
	TriggerSweep            Trigger = "sweep"
)

// Classification はイベントを同期すべきかどうかの判定結果
type Classification struct {
	Number  int
	Trigger Trigger
	Skip    bool
	Reason  string
}

func skip(reason string) Classification {
	return Classification{Skip: true, Reason: reason}
}

// ContainsPhrase は本文にフレーズが含まれるかを大文字小文字を区別せずに判定する
func ContainsPhrase(body, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(strings.ToLower(body), strings.ToLower(phrase))
}

// ClassifyEvent はイベントの形からどの PR をどう同期するかを決める
// 副作用はない。判別できないイベントは Skip として返す
func ClassifyEvent(e *models.Event, blessPhrase string) Classification {
	if e == nil {
		return skip("empty event")
	}

	if e.PullRequest != nil {
		number := e.PullRequest.GetNumber()
		if number == 0 {
			return skip("pull request number is missing")
		}

		// レビューが付いていれば action に関係なくレビュー提出として扱う
		if e.Review != nil {
			return Classification{Number: number, Trigger: TriggerReviewSubmitted}
		}

		action := ""
		if e.Action != nil {
			action = *e.Action
		}
		switch action {
		case "opened":
			return Classification{Number: number, Trigger: TriggerOpened}
		case "ready_for_review":
			return Classification{Number: number, Trigger: TriggerReadyForReview}
		case "converted_to_draft":
			return Classification{Number: number, Trigger: TriggerConvertedToDraft}
		default:
			return skip("unexpected pull request action")
		}
	}

	if e.Comment != nil {
		if e.Issue == nil || e.Issue.GetNumber() == 0 {
			return skip("comment without issue")
		}
		if !e.Issue.IsPullRequest() {
			return skip("comment on an issue that is not a pull request")
		}
		if !ContainsPhrase(e.Comment.GetBody(), blessPhrase) {
			return skip("unrelated comment")
		}
		return Classification{Number: e.Issue.GetNumber(), Trigger: TriggerBlessComment}
	}

	return skip("unrecognized event")
}
