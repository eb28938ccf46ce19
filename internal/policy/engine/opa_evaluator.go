package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.xend.authz.allow"

// DefaultPolicy lets a user read their own record and an admin read any record.
const DefaultPolicy = `package xend.authz

default allow := false

allow if {
	input.action == "user.read"
	input.subject.id == input.resource.owner_id
}

allow if {
	input.action == "user.read"
	input.subject.role == "admin"
}
`

// OPAEvaluator evaluates the access policy with an embedded OPA Rego engine. The policy is
// compiled once; Allow only evaluates.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy, which must define data.xend.authz.allow. Empty policy
// uses DefaultPolicy.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if strings.TrimSpace(policy) == "" {
		policy = DefaultPolicy
	}
	q, err := rego.New(
		rego.Query(allowQuery),
		rego.Module("authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// NewOPAEvaluatorFromFile compiles the policy at path, or DefaultPolicy when path is empty.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b))
}

// Allow evaluates in. An undefined or non-boolean result is a deny.
func (e *OPAEvaluator) Allow(ctx context.Context, in Input) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(toInput(in)))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// HealthCheck evaluates a self-read, which every sane policy allows.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	ok, err := e.Allow(ctx, Input{
		Action:   ActionUserRead,
		Subject:  Subject{ID: "health", Role: "user", IsProfileComplete: true},
		Resource: Resource{Type: "user", OwnerID: "health"},
	})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("policy denied a self-read")
	}
	return nil
}

func toInput(in Input) map[string]interface{} {
	return map[string]interface{}{
		"action": in.Action,
		"subject": map[string]interface{}{
			"id":                  in.Subject.ID,
			"role":                in.Subject.Role,
			"is_profile_complete": in.Subject.IsProfileComplete,
		},
		"resource": map[string]interface{}{
			"type":     in.Resource.Type,
			"owner_id": in.Resource.OwnerID,
		},
	}
}
