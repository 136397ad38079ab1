// Package scheduler defines the scheduler contract: a pluggable policy
// that owns its own persistent per-card state and reacts to card lifecycle
// events by producing recommendations.
package scheduler

// Recommendation is "this card should next surface no earlier than Time ±
// PrecisionSeconds". Distinct from internal/catalog.Recommendation: this
// one has no SchedulerID, since a scheduler always knows its own id and
// the caller (synchronizer, review session) attaches it when upserting
// into the catalog.
type Recommendation struct {
	CardID           int64
	Time             string
	PrecisionSeconds int
}

// ReviewEvent is what OnReview receives: the graded outcome of a single
// card.
type ReviewEvent struct {
	CardID        int64
	Timestamp     string
	Grade         int
	TimeOnFrontMs *int
	TimeOnCardMs  *int
	Feedback      *string
	Response      *string // canonical JSON, or nil
}

// Scheduler is the policy contract. Every hook may be called more than
// once on partial recovery, so implementations must be effectively
// idempotent under retries. A hook failure must never abort the caller's
// transaction: callers log errors returned here via internal/diagnostic
// and continue.
type Scheduler interface {
	// ID is the short string written into recommendations.scheduler_id.
	ID() string

	// OnCardCreated is called when a card first enters active state.
	OnCardCreated(cardID int64) (*Recommendation, error)

	// OnCardReplaced is called when content changes; the policy decides how
	// much prior learning carries over from oldID to newID.
	OnCardReplaced(oldID, newID int64) (*Recommendation, error)

	// OnReview is the only hook that changes mastery state. It may return
	// recommendations for cards other than the graded one.
	OnReview(cardID int64, event ReviewEvent) ([]Recommendation, error)

	// OnCardStatusChanged is invoked on status -> inactive or deleted.
	OnCardStatusChanged(cardID int64, status string) error

	// OnRelationsChanged is an advisory hook for policies that use relation
	// graphs; it may return recommendations.
	OnRelationsChanged(cardIDs []int64) ([]Recommendation, error)

	// Close releases the scheduler's own storage handle.
	Close() error
}
