package deliberation

import (
	"context"
	"fmt"

	"policy-deliberation-api/pkg/models"
)

// MaxReviewAttempts 審査の最大回数
const MaxReviewAttempts = 3

// ReviewState 審査ループの状態
type ReviewState int

const (
	StateDrafted ReviewState = iota
	StateReviewing
	StateRevising
	StateApproved
	StateExhausted
)

func (s ReviewState) String() string {
	switch s {
	case StateDrafted:
		return "drafted"
	case StateReviewing:
		return "reviewing"
	case StateRevising:
		return "revising"
	case StateApproved:
		return "approved"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("ReviewState(%d)", int(s))
	}
}

// ReviewOutcome 審査ループの結果
type ReviewOutcome struct {
	Draft    models.PolicyDraft
	Verdict  models.ReviewVerdict // 常に最後の審査結果
	Attempts int
	State    ReviewState
}

// Approved は承認で終わったかを返します。
func (o ReviewOutcome) Approved() bool { return o.State == StateApproved }

// ReviewFinal reviewFinal イベントのペイロード
type ReviewFinal struct {
	Approved  bool                 `json:"approved"`
	Attempts  int                  `json:"attempts"`
	Exhausted bool                 `json:"exhausted"`
	Verdict   models.ReviewVerdict `json:"verdict"`
	Draft     models.PolicyDraft   `json:"policy"`
}

// ReviewLoop 起草と審査の往復を最大 MaxReviewAttempts 回に制限します。
type ReviewLoop struct {
	drafting    *DraftingStage
	review      *ReviewStage
	maxAttempts int
}

// Run は最初の政策案から審査ループを回します。承認されなくても最後の案で終了します。
func (l *ReviewLoop) Run(ctx context.Context, input string, draft models.PolicyDraft, reviewer models.ReviewerAgent, emit Emitter) (ReviewOutcome, error) {
	maxAttempts := l.maxAttempts
	if maxAttempts < 1 {
		maxAttempts = MaxReviewAttempts
	}

	out := ReviewOutcome{Draft: draft, State: StateDrafted}
	for {
		switch out.State {
		case StateDrafted:
			emit(models.ProgressEvent{Type: models.EventPolicy, Data: out.Draft})
			out.State = StateReviewing

		case StateReviewing:
			out.Attempts++
			verdict, err := l.review.Run(ctx, out.Draft, reviewer, out.Attempts, emit)
			if err != nil {
				return out, err
			}
			out.Verdict = verdict
			switch {
			case verdict.Approved.Bool():
				out.State = StateApproved
			case out.Attempts < maxAttempts:
				out.State = StateRevising
			default:
				out.State = StateExhausted
			}

		case StateRevising:
			revised, err := l.drafting.Revise(ctx, input, out.Draft, out.Verdict, emit)
			if err != nil {
				return out, err
			}
			out.Draft = revised
			out.State = StateDrafted

		case StateApproved, StateExhausted:
			if out.State == StateExhausted {
				emit(models.Status(StageReview, fmt.Sprintf("%d回の審査で承認に至らなかったため、最新の政策案で評価に進みます", out.Attempts)))
			}
			emit(models.ProgressEvent{Type: models.EventReviewFinal, Data: ReviewFinal{
				Approved:  out.Approved(),
				Attempts:  out.Attempts,
				Exhausted: out.State == StateExhausted,
				Verdict:   out.Verdict,
				Draft:     out.Draft,
			}})
			return out, nil
		}
	}
}
