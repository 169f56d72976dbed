package enum

// JoinRequestStatus is the state of a join request.
type JoinRequestStatus string

const (
	JoinRequestStatusPending  JoinRequestStatus = "pending"
	JoinRequestStatusApproved JoinRequestStatus = "approved"
	JoinRequestStatusDenied   JoinRequestStatus = "denied"
)

func (s JoinRequestStatus) String() string {
	return string(s)
}

// JoinDecision is the outcome an admin applies to a pending request.
type JoinDecision string

const (
	JoinDecisionApprove JoinDecision = "approve"
	JoinDecisionDeny    JoinDecision = "deny"
)

// Status returns the request status the decision leads to.
func (d JoinDecision) Status() JoinRequestStatus {
	if d == JoinDecisionApprove {
		return JoinRequestStatusApproved
	}

	return JoinRequestStatusDenied
}
