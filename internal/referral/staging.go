// Package referral stages a candidate referral code across the
// authentication redirect. Staging is scoped to one browser session and
// carries no durable side effect: the value either becomes an attribution
// during member creation or evaporates.
package referral

import "context"

// Staging is a keyed session-id → code store with consume-once semantics.
type Staging interface {
	// Stage records code against the session, overwriting any prior value.
	Stage(ctx context.Context, sessionID, code string) error

	// Consume atomically reads and clears the staged value. A missing or
	// already-consumed value yields the empty string, not an error.
	Consume(ctx context.Context, sessionID string) (string, error)
}
