package handler

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

const (
	actionBook        = "book"
	actionReadBooking = "read_booking"
	actionCreateTrain = "create_train"
)

//go:embed policy/booking.rego
var bookingPolicy string

// Authorizer evaluates the embedded booking policy.
type Authorizer struct {
	query rego.PreparedEvalQuery
}

func NewAuthorizer(ctx context.Context) (*Authorizer, error) {
	query, err := rego.New(
		rego.Query("data.booking.authz.allow"),
		rego.Module("booking.rego", bookingPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare booking policy: %w", err)
	}
	return &Authorizer{query: query}, nil
}

// Allow reports whether p may perform action on a resource owned by ownerID.
func (a *Authorizer) Allow(ctx context.Context, p Principal, action string, ownerID int64) (bool, error) {
	input := map[string]any{
		"action":   action,
		"owner_id": ownerID,
		"principal": map[string]any{
			"user_id": p.UserID,
			"admin":   p.Admin,
		},
	}

	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("evaluate booking policy: %w", err)
	}
	return rs.Allowed(), nil
}
