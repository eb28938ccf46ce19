package engine

import "context"

// Actions checked against the access policy.
const (
	ActionUserRead = "user.read"
)

// Subject is the authenticated caller.
type Subject struct {
	ID                string `json:"id"`
	Role              string `json:"role"`
	IsProfileComplete bool   `json:"is_profile_complete"`
}

// Resource is the target of an action.
type Resource struct {
	Type    string `json:"type"`
	OwnerID string `json:"owner_id"`
}

// Input is the document evaluated by the policy.
type Input struct {
	Action   string   `json:"action"`
	Subject  Subject  `json:"subject"`
	Resource Resource `json:"resource"`
}

// Evaluator decides whether a subject may perform an action on a resource.
type Evaluator interface {
	Allow(ctx context.Context, in Input) (bool, error)
}
