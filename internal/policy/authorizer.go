// Package policy decides access to bookings with an embedded Rego policy
package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/open-policy-agent/opa/rego"
)

//go:embed authz.rego
var authzModule string

const authzQuery = "data.railbook.authz.allow"

type Action string

const (
	ActionRead   Action = "read"
	ActionCancel Action = "cancel"
	ActionExport Action = "export"

	// ActionManageQueue covers reading and requeueing dead-lettered notification tasks
	ActionManageQueue Action = "manage_queue"
)

type Authorizer struct {
	query rego.PreparedEvalQuery
}

// NewAuthorizer compiles the policy once; evaluation is safe for concurrent use
func NewAuthorizer(ctx context.Context) (*Authorizer, error) {
	query, err := rego.New(
		rego.Query(authzQuery),
		rego.Module("authz.rego", authzModule),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare authz policy: %w", err)
	}
	return &Authorizer{query: query}, nil
}

// AuthorizeBooking returns an authorization error unless the identity may act on the booking
func (a *Authorizer) AuthorizeBooking(ctx context.Context, identity *entity.Identity, action Action, b *entity.Booking) error {
	allowed, err := a.allowed(ctx, identity, action, map[string]interface{}{
		"type":     "booking",
		"id":       b.ID,
		"owner_id": b.UserID,
	})
	if err != nil {
		return err
	}
	if !allowed {
		return entity.NewAuthorizationError("booking belongs to another user")
	}
	return nil
}

// AuthorizeAdmin allows operator actions to identities carrying the admin role
func (a *Authorizer) AuthorizeAdmin(ctx context.Context, identity *entity.Identity, action Action) error {
	allowed, err := a.allowed(ctx, identity, action, map[string]interface{}{"type": "queue"})
	if err != nil {
		return err
	}
	if !allowed {
		return entity.NewAuthorizationError("admin role required")
	}
	return nil
}

func (a *Authorizer) allowed(ctx context.Context, identity *entity.Identity, action Action, resource map[string]interface{}) (bool, error) {
	subject := map[string]interface{}{
		"user_id":        "",
		"email_verified": false,
		"roles":          []string{},
	}
	if identity != nil {
		subject["user_id"] = identity.UserID
		subject["email_verified"] = identity.EmailVerified
		if identity.Roles != nil {
			subject["roles"] = identity.Roles
		}
	}

	input := map[string]interface{}{
		"action":   string(action),
		"subject":  subject,
		"resource": resource,
	}

	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate authz policy: %w", err)
	}
	return rs.Allowed(), nil
}
