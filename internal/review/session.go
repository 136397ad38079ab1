// Package review implements the review session: a stateful cursor over due
// cards, independent of any transport. A session serves one card at a time,
// records graded outcomes atomically with scheduler updates, suppresses
// mutually exclusive siblings, and supports undo.
package review

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AM-Campbell/sr/internal/adapter"
	"github.com/AM-Campbell/sr/internal/catalog"
	"github.com/AM-Campbell/sr/internal/clock"
	"github.com/AM-Campbell/sr/internal/diagnostic"
	"github.com/AM-Campbell/sr/internal/jsonc"
	"github.com/AM-Campbell/sr/internal/scheduler"
)

// ErrNoCurrentCard is returned by flip/grade/skip/suspend when no card is
// being served.
var ErrNoCurrentCard = errors.New("review: no card is currently being served")

// ErrNothingToUndo is returned by Undo when the undo stack is empty.
var ErrNothingToUndo = errors.New("review: nothing to undo")

// ErrInvalidGrade is returned by GradeCurrent for a grade outside {0, 1};
// the session is left unaffected.
var ErrInvalidGrade = errors.New("review: grade must be 0 or 1")

// ErrInvalidFeedback is returned by GradeCurrent for an unrecognized
// feedback value; the session is left unaffected.
var ErrInvalidFeedback = errors.New("review: feedback must be too_hard, just_right, or too_easy")

// ServedCard is the card a session is currently presenting.
type ServedCard struct {
	ID         int64
	SourcePath string
	Adapter    string
	Content    string
	Gradable   bool
	SourceLine int
}

// undoEntry is one completed cycle's worth of state to restore. It carries
// both the card and the sibling ids its grade excluded, so undo can lift
// exactly the exclusions that cycle added.
type undoEntry struct {
	card           ServedCard
	servedAt       time.Time
	flippedAt      time.Time
	reviewedBefore int
	siblings       []int64
}

// Session is a stateful cursor over due cards for one scope.
type Session struct {
	ID    string
	Token string

	store *catalog.Store
	sched scheduler.Scheduler

	tagFilter  string
	pathFilter string
	flagFilter string

	current   *ServedCard
	servedAt  time.Time
	flippedAt time.Time

	reviewed int
	excluded map[int64]bool
	undo     []undoEntry
}

// New starts a session scoped by the given filters (empty string = no
// filter on that dimension). sched may be nil.
func New(store *catalog.Store, sched scheduler.Scheduler, tagFilter, pathFilter, flagFilter string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Token:      uuid.NewString(),
		store:      store,
		sched:      sched,
		tagFilter:  tagFilter,
		pathFilter: pathFilter,
		flagFilter: flagFilter,
		excluded:   map[int64]bool{},
	}
}

func (s *Session) filter() catalog.CardFilter {
	f := catalog.CardFilter{Tag: s.tagFilter, PathPrefix: s.pathFilter, Flag: s.flagFilter}
	for id := range s.excluded {
		f.ExcludedIDs = append(f.ExcludedIDs, id)
	}
	return f
}

// GetNext serves the next due card. Returns (nil, false, nil) when the
// session is done.
func (s *Session) GetNext() (*ServedCard, bool, error) {
	now := clock.NowString(s.store.Clock())
	d, ok, err := s.store.NextDueCard(now, s.filter())
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	card := ServedCard{
		ID: d.ID, SourcePath: d.SourcePath, Adapter: d.Adapter,
		Content: d.Content, Gradable: d.Gradable, SourceLine: d.SourceLine,
	}
	s.current = &card
	s.servedAt = s.store.Clock().Now()
	s.flippedAt = time.Time{}
	return &card, true, nil
}

// RemainingCount is how many more cards GetNext could still serve.
func (s *Session) RemainingCount() (int, error) {
	return s.store.RemainingCount(clock.NowString(s.store.Clock()), s.filter())
}

// RenderFront renders the currently served card's front.
func (s *Session) RenderFront() (string, error) {
	if s.current == nil {
		return "", ErrNoCurrentCard
	}
	return renderWith(s.current.Adapter, s.current.Content, func(a adapter.Adapter, c map[string]any) (string, error) {
		return a.RenderFront(c)
	})
}

// Flip reveals the currently served card's back and starts its flip clock.
func (s *Session) Flip() (string, error) {
	if s.current == nil {
		return "", ErrNoCurrentCard
	}
	s.flippedAt = s.store.Clock().Now()
	return renderWith(s.current.Adapter, s.current.Content, func(a adapter.Adapter, c map[string]any) (string, error) {
		return a.RenderBack(c)
	})
}

func renderWith(adapterName, content string, render func(adapter.Adapter, map[string]any) (string, error)) (string, error) {
	a, err := adapter.Get(adapterName)
	if err != nil {
		return "", err
	}
	decoded, err := jsonc.Decode([]byte(content))
	if err != nil {
		return "", err
	}
	c, _ := decoded.(map[string]any)
	return render(a, c)
}

// GradeCurrent records a grade for the currently served card: the review
// event, scheduler hook, and any returned recommendations commit in one
// transaction; then mutually exclusive siblings of the graded card are
// excluded for the rest of the session.
func (s *Session) GradeCurrent(ctx context.Context, grade int, feedback *string, response map[string]any) error {
	if s.current == nil {
		return ErrNoCurrentCard
	}
	if grade != 0 && grade != 1 {
		return ErrInvalidGrade
	}
	if feedback != nil {
		switch *feedback {
		case "too_hard", "just_right", "too_easy":
		default:
			return ErrInvalidFeedback
		}
	}
	card := *s.current
	servedAt, flippedAt := s.servedAt, s.flippedAt

	now := s.store.Clock().Now()
	ts := clock.FormatString(now)
	var frontMs, cardMs *int
	if !flippedAt.IsZero() {
		v := int(flippedAt.Sub(servedAt).Milliseconds())
		frontMs = &v
	}
	if !servedAt.IsZero() {
		v := int(now.Sub(servedAt).Milliseconds())
		cardMs = &v
	}
	var responseJSON *string
	if response != nil {
		b, err := jsonc.Marshal(response)
		if err != nil {
			return err
		}
		str := string(b)
		responseJSON = &str
	}

	err := s.store.RunInTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.store.AppendReviewEvent(tx, catalog.ReviewEvent{
			CardID:        card.ID,
			SessionID:     s.ID,
			Timestamp:     ts,
			Grade:         grade,
			TimeOnFrontMs: frontMs,
			TimeOnCardMs:  cardMs,
			Feedback:      feedback,
			Response:      responseJSON,
		}); err != nil {
			return err
		}
		if s.sched == nil {
			return nil
		}
		recs, err := s.sched.OnReview(card.ID, scheduler.ReviewEvent{
			CardID: card.ID, Timestamp: ts, Grade: grade,
			TimeOnFrontMs: frontMs, TimeOnCardMs: cardMs,
			Feedback: feedback, Response: responseJSON,
		})
		if err != nil {
			diagnostic.Warn("scheduler %s: on_review(%d) failed: %v", s.sched.ID(), card.ID, err)
			return nil
		}
		for _, rec := range recs {
			normalizedTime, err := clock.NormalizeExternal(rec.Time)
			if err != nil {
				diagnostic.Warn("scheduler %s: card %d: unparseable recommendation time %q: %v", s.sched.ID(), rec.CardID, rec.Time, err)
				continue
			}
			if err := s.store.UpsertRecommendation(tx, catalog.Recommendation{
				CardID: rec.CardID, SchedulerID: s.sched.ID(),
				Time: normalizedTime, PrecisionSeconds: rec.PrecisionSeconds,
			}); err != nil {
				diagnostic.Warn("scheduler %s: cannot store recommendation for card %d: %v", s.sched.ID(), rec.CardID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.advance(card, servedAt, flippedAt)
}

// Skip advances past the currently served (typically non-gradable) card
// without recording a review event, applying the same exclusion logic as a
// grade.
func (s *Session) Skip(ctx context.Context) error {
	if s.current == nil {
		return ErrNoCurrentCard
	}
	card := *s.current
	return s.advance(card, s.servedAt, s.flippedAt)
}

// Suspend flips the current card to inactive, clears its recommendation,
// notifies the scheduler, then advances exactly as Skip.
func (s *Session) Suspend(ctx context.Context) error {
	if s.current == nil {
		return ErrNoCurrentCard
	}
	card := *s.current
	now := clock.NowString(s.store.Clock())

	err := s.store.RunInTx(ctx, func(tx *sql.Tx) error {
		if err := s.store.SetCardStatus(tx, card.ID, catalog.StatusInactive, now); err != nil {
			return err
		}
		return s.store.DeleteRecommendations(tx, card.ID)
	})
	if err != nil {
		return err
	}
	if s.sched != nil {
		if err := s.sched.OnCardStatusChanged(card.ID, catalog.StatusInactive); err != nil {
			diagnostic.Warn("scheduler %s: on_card_status_changed(%d, inactive) failed: %v", s.sched.ID(), card.ID, err)
		}
	}
	return s.advance(card, s.servedAt, s.flippedAt)
}

// advance is the shared tail of grade/skip/suspend: exclude the card and
// its mutually-exclusive siblings, push an undo entry, bump the reviewed
// counter, and clear the current card.
func (s *Session) advance(card ServedCard, servedAt, flippedAt time.Time) error {
	siblings, err := s.store.MutuallyExclusiveSiblings(card.ID)
	if err != nil {
		return err
	}
	var newlyExcluded []int64
	for _, sid := range siblings {
		if !s.excluded[sid] {
			newlyExcluded = append(newlyExcluded, sid)
			s.excluded[sid] = true
		}
	}
	s.excluded[card.ID] = true

	s.undo = append(s.undo, undoEntry{
		card: card, servedAt: servedAt, flippedAt: flippedAt,
		reviewedBefore: s.reviewed, siblings: newlyExcluded,
	})
	s.reviewed++
	s.current = nil
	return nil
}

// Undo pops the undo stack: the popped card becomes current again with its
// flip-time intact, its and its siblings' exclusions are lifted, and the
// reviewed counter is restored. The review log is append-only and is never
// touched by undo.
func (s *Session) Undo() error {
	if len(s.undo) == 0 {
		return ErrNothingToUndo
	}
	last := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]

	delete(s.excluded, last.card.ID)
	for _, sid := range last.siblings {
		delete(s.excluded, sid)
	}
	s.reviewed = last.reviewedBefore

	card := last.card
	s.current = &card
	s.servedAt = last.servedAt
	s.flippedAt = last.flippedAt
	return nil
}

// Reviewed is how many cards this session has graded, skipped, or suspended
// so far (undo decrements it).
func (s *Session) Reviewed() int { return s.reviewed }

// Current returns the card currently being served, or nil.
func (s *Session) Current() *ServedCard { return s.current }
