// Package gateway abstracts the controllable marketplace session the posting
// pipeline drives. The pipeline owns the manual-login gate; implementations
// only open a session, submit offers through the create-offer form, and close.
package gateway

import (
	"context"
	"errors"

	"offerplacer/internal/domain"
)

// ErrSessionLost marks an unrecoverable session failure (expired login,
// marketplace unreachable mid-run). The pipeline stops submitting and reports
// the remaining offers as skipped.
var ErrSessionLost = errors.New("marketplace session lost")

// Confirmation is what the marketplace reports back for a placed offer.
type Confirmation struct {
	OfferID string
	Message string
}

// Session is one exclusive, logged-in marketplace context.
type Session interface {
	// Submit drives the create-offer form for one offer and reads the
	// confirmation. Returns ErrSessionLost (possibly wrapped) when the
	// session itself is gone; any other error is a single-offer failure.
	Submit(ctx context.Context, offer domain.Offer) (Confirmation, error)
	Close() error
}

// Gateway opens marketplace sessions bound to a configured profile.
type Gateway interface {
	Open(ctx context.Context, profileDir string) (Session, error)
}
