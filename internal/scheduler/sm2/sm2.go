// Package sm2 is the default scheduler policy, a SuperMemo-2 variant:
// ease factor, interval, and repetition count per card, kept in the
// scheduler's own SQLite database separate from the catalog.
package sm2

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AM-Campbell/sr/internal/clock"
	"github.com/AM-Campbell/sr/internal/scheduler"
)

// ID is the registry name and the scheduler_id column value.
const ID = "sm2"

func init() {
	scheduler.Register(ID, func(dir string) (scheduler.Scheduler, error) {
		return New(dir, clock.Real())
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS sm2_state (
	card_id INTEGER PRIMARY KEY,
	ease_factor REAL NOT NULL DEFAULT 2.5,
	interval_days REAL NOT NULL DEFAULT 0,
	repetitions INTEGER NOT NULL DEFAULT 0,
	last_review TEXT,
	next_review TEXT
);
`

const (
	defaultEase = 2.5
	minEase     = 1.3
	maxEase     = 3.0
)

// Scheduler implements the scheduler contract with the SuperMemo-2
// algorithm.
type Scheduler struct {
	db    *sql.DB
	clock clock.Clock
}

// New opens (creating if absent) sm2.db under dir.
func New(dir string, clk clock.Clock) (*Scheduler, error) {
	path := filepath.Join(dir, "sm2.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sm2: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sm2: schema: %w", err)
	}
	return &Scheduler{db: db, clock: clk}, nil
}

func (s *Scheduler) ID() string { return ID }

func (s *Scheduler) Close() error { return s.db.Close() }

type state struct {
	ease   float64
	days   float64
	reps   int
	exists bool
}

func (s *Scheduler) load(cardID int64) (state, error) {
	var st state
	err := s.db.QueryRow(
		`SELECT ease_factor, interval_days, repetitions FROM sm2_state WHERE card_id = ?`,
		cardID).Scan(&st.ease, &st.days, &st.reps)
	if err == sql.ErrNoRows {
		return state{ease: defaultEase}, nil
	}
	if err != nil {
		return state{}, fmt.Errorf("sm2: load state: %w", err)
	}
	st.exists = true
	return st, nil
}

func (s *Scheduler) save(cardID int64, st state, lastReview, nextReview string) error {
	_, err := s.db.Exec(`
		INSERT INTO sm2_state (card_id, ease_factor, interval_days, repetitions, last_review, next_review)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			ease_factor = excluded.ease_factor,
			interval_days = excluded.interval_days,
			repetitions = excluded.repetitions,
			last_review = excluded.last_review,
			next_review = excluded.next_review`,
		cardID, st.ease, st.days, st.reps, lastReview, nextReview)
	if err != nil {
		return fmt.Errorf("sm2: save state: %w", err)
	}
	return nil
}

func precisionSeconds(intervalDays float64) int {
	p := int(intervalDays * 86400 * 0.1)
	if p < 60 {
		return 60
	}
	return p
}

// OnCardCreated schedules a new card for immediate review.
func (s *Scheduler) OnCardCreated(cardID int64) (*scheduler.Recommendation, error) {
	st := state{ease: defaultEase}
	now := clock.NowString(s.clock)
	if err := s.save(cardID, st, "", now); err != nil {
		return nil, err
	}
	return &scheduler.Recommendation{CardID: cardID, Time: now, PrecisionSeconds: 60}, nil
}

// OnCardReplaced carries over prior learning: ease is kept, repetitions
// drop by one (floored at zero), interval shrinks by 30% (floored at one
// day).
func (s *Scheduler) OnCardReplaced(oldID, newID int64) (*scheduler.Recommendation, error) {
	old, err := s.load(oldID)
	if err != nil {
		return nil, err
	}
	if !old.exists {
		return s.OnCardCreated(newID)
	}

	reps := old.reps - 1
	if reps < 0 {
		reps = 0
	}
	days := old.days * 0.7
	if days < 1 {
		days = 1
	}

	next := s.clock.Now().Add(time.Duration(days * float64(24*time.Hour)))
	nextStr := clock.FormatString(next)

	st := state{ease: old.ease, days: days, reps: reps}
	if err := s.save(newID, st, "", nextStr); err != nil {
		return nil, err
	}
	return &scheduler.Recommendation{
		CardID: newID, Time: nextStr, PrecisionSeconds: precisionSeconds(days),
	}, nil
}

// OnReview is the only hook that mutates mastery state.
func (s *Scheduler) OnReview(cardID int64, event scheduler.ReviewEvent) ([]scheduler.Recommendation, error) {
	st, err := s.load(cardID)
	if err != nil {
		return nil, err
	}

	if event.Grade == 1 {
		st.reps++
		switch st.reps {
		case 1:
			st.days = 1
		case 2:
			st.days = 6
		default:
			st.days = st.days * st.ease
		}
		if event.Feedback != nil {
			switch *event.Feedback {
			case "too_easy":
				st.ease = minF(st.ease+0.15, maxEase)
			case "too_hard":
				st.ease = maxF(st.ease-0.15, minEase)
			}
		}
	} else {
		st.reps = 0
		st.days = 0.01
		st.ease = maxF(st.ease-0.2, minEase)
	}

	next := s.clock.Now().Add(time.Duration(st.days * float64(24*time.Hour)))
	nextStr := clock.FormatString(next)
	if err := s.save(cardID, st, event.Timestamp, nextStr); err != nil {
		return nil, err
	}

	return []scheduler.Recommendation{{
		CardID: cardID, Time: nextStr, PrecisionSeconds: precisionSeconds(st.days),
	}}, nil
}

// OnCardStatusChanged drops state for deleted cards; inactive cards keep
// their state so un-suspending resumes where they left off.
func (s *Scheduler) OnCardStatusChanged(cardID int64, status string) error {
	if status != "deleted" {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM sm2_state WHERE card_id = ?`, cardID)
	if err != nil {
		return fmt.Errorf("sm2: delete state: %w", err)
	}
	return nil
}

// OnRelationsChanged has no special handling in SM-2.
func (s *Scheduler) OnRelationsChanged(cardIDs []int64) ([]scheduler.Recommendation, error) {
	return nil, nil
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
