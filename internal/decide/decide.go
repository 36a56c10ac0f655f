// Package decide maps a match candidate to a booking decision. The policy
// is a pure function of the candidate, which keeps the thresholds
// independently testable.
package decide

import (
	"github.com/rumor-ml/commons.systems/bankimport/internal/domain"
)

// Policy thresholds. A candidate at exactly AutoBookThreshold auto-books;
// one below RelationThreshold never does.
const (
	AutoBookThreshold = 90
	RelationThreshold = 60
)

// Decide applies the booking policy to one candidate:
//
//   - confidence >= 90 and an existing contact with a resolved ledger
//     account: auto-book. Direct route when the contact has no settlement
//     account configured, relation route otherwise.
//   - 60 <= confidence < 90: relation route, but only for existing
//     contacts with a settlement account; a new contact is never
//     auto-created at medium confidence.
//   - confidence < 60, a new-contact proposal at any confidence, or no
//     candidate at all: defer to manual review.
func Decide(candidate *domain.MatchCandidate, hasSettlement bool) domain.BookingDecision {
	if candidate == nil {
		return domain.BookingDecision{Route: domain.RouteReview}
	}

	decision := domain.BookingDecision{
		Route:      domain.RouteReview,
		Candidate:  candidate,
		Confidence: candidate.Confidence,
	}

	// New counterparties always get human eyes, whatever the score.
	if candidate.Kind != domain.KindExistingContact {
		return decision
	}

	switch {
	case candidate.Confidence >= AutoBookThreshold && candidate.LedgerAccountID != 0:
		if hasSettlement {
			decision.Route = domain.RouteRelation
		} else {
			decision.Route = domain.RouteDirect
		}
	case candidate.Confidence >= RelationThreshold && hasSettlement:
		decision.Route = domain.RouteRelation
	}

	return decision
}
