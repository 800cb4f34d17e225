package application

// Application statuses (ct_status)
const (
	StatusDraft       = "draft"
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusAwaitingSME = "awaiting_sme"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
)

// Past subject approval statuses
const (
	ApprovalPending   = "pending"
	ApprovalTemplate3 = "approved_template3"
	ApprovalNeedsSME  = "needs_sme_review"
	ApprovalSME       = "approved_sme"
	ApprovalRejected  = "rejected"
)

var (
	Statuses         = []string{StatusDraft, StatusSubmitted, StatusUnderReview, StatusAwaitingSME, StatusApproved, StatusRejected}
	ApprovalStatuses = []string{ApprovalPending, ApprovalTemplate3, ApprovalNeedsSME, ApprovalSME, ApprovalRejected}

	transitions = map[string][]string{
		StatusDraft:       {StatusDraft, StatusSubmitted},
		StatusSubmitted:   {StatusUnderReview, StatusRejected},
		StatusUnderReview: {StatusAwaitingSME, StatusApproved, StatusRejected},
		StatusAwaitingSME: {StatusUnderReview, StatusApproved, StatusRejected},
	}
)

// CanTransition reports whether an application may go from `from` to `to`.
// approved & rejected are terminal.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsReviewable reports whether past subjects of an application in `status` may still be decided on.
func IsReviewable(status string) bool {
	return status == StatusSubmitted || status == StatusUnderReview || status == StatusAwaitingSME
}

// IsApproved reports whether a past subject approval status is an approval.
func IsApproved(approval string) bool {
	return approval == ApprovalTemplate3 || approval == ApprovalSME
}

// IsDecided reports whether a past subject has a final decision.
func IsDecided(approval string) bool {
	return IsApproved(approval) || approval == ApprovalRejected
}

// Derive returns the application status matching the decisions on its past subjects:
//   - any subject waiting for an SME: awaiting_sme
//   - any subject not decided yet: under_review
//   - all decided: approved when at least one was approved, rejected otherwise
func Derive(approvals []string) string {
	if len(approvals) == 0 {
		return StatusUnderReview
	}
	var pending, approved bool
	for _, a := range approvals {
		switch {
		case a == ApprovalNeedsSME:
			return StatusAwaitingSME
		case IsApproved(a):
			approved = true
		case a != ApprovalRejected:
			pending = true
		}
	}
	switch {
	case pending:
		return StatusUnderReview
	case approved:
		return StatusApproved
	default:
		return StatusRejected
	}
}

// nextStatus returns the status an application in `current` moves to after a review action,
// going through under_review when it was only submitted.
func nextStatus(current string, approvals []string) (string, bool) {
	derived := Derive(approvals)
	if current == derived {
		return current, true
	}
	from := current
	if from == StatusSubmitted && derived != StatusRejected {
		from = StatusUnderReview
		if derived == StatusUnderReview {
			return derived, true
		}
	}
	return derived, CanTransition(from, derived)
}
