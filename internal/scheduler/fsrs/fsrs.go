// Package fsrs is an alternate scheduler policy wrapping
// github.com/open-spaced-repetition/go-fsrs/v3, with its own persistent
// per-card state store. Registered under scheduler_id "fsrs" alongside the
// default "sm2" policy.
package fsrs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	gofsrs "github.com/open-spaced-repetition/go-fsrs/v3"

	"github.com/AM-Campbell/sr/internal/clock"
	"github.com/AM-Campbell/sr/internal/scheduler"
)

// ID is the registry name and scheduler_id column value.
const ID = "fsrs"

func init() {
	scheduler.Register(ID, func(dir string) (scheduler.Scheduler, error) {
		return New(dir, clock.Real())
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS fsrs_state (
	card_id INTEGER PRIMARY KEY,
	card_json TEXT NOT NULL
);
`

// Scheduler implements the scheduler contract over go-fsrs: each review
// runs Repeat(card, now), and the per-card fsrs.Card is round-tripped
// through its own SQLite table.
type Scheduler struct {
	db     *sql.DB
	clock  clock.Clock
	params gofsrs.Parameters
	engine *gofsrs.FSRS
}

// New opens (creating if absent) fsrs.db under dir: 0.90 desired
// retention, century-scale maximum interval.
func New(dir string, clk clock.Clock) (*Scheduler, error) {
	path := filepath.Join(dir, "fsrs.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("fsrs: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("fsrs: schema: %w", err)
	}
	params := gofsrs.DefaultParam()
	params.RequestRetention = 0.90
	params.MaximumInterval = 36500
	return &Scheduler{db: db, clock: clk, params: params, engine: gofsrs.NewFSRS(params)}, nil
}

func (s *Scheduler) ID() string { return ID }

func (s *Scheduler) Close() error { return s.db.Close() }

func (s *Scheduler) load(cardID int64) (gofsrs.Card, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT card_json FROM fsrs_state WHERE card_id = ?`, cardID).Scan(&raw)
	if err == sql.ErrNoRows {
		return gofsrs.NewCard(), false, nil
	}
	if err != nil {
		return gofsrs.Card{}, false, fmt.Errorf("fsrs: load state: %w", err)
	}
	var c gofsrs.Card
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return gofsrs.Card{}, false, fmt.Errorf("fsrs: decode state: %w", err)
	}
	return c, true, nil
}

func (s *Scheduler) save(cardID int64, c gofsrs.Card) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("fsrs: encode state: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO fsrs_state (card_id, card_json) VALUES (?, ?)
		ON CONFLICT(card_id) DO UPDATE SET card_json = excluded.card_json`,
		cardID, string(raw))
	if err != nil {
		return fmt.Errorf("fsrs: save state: %w", err)
	}
	return nil
}

// precisionFor derives the recommendation's precision from how far out Due
// is from now (10% of the interval, floored at 60s), mirroring SM-2's
// interval-fraction rule without depending on FSRS's internal
// scheduled-days bookkeeping.
func precisionFor(c gofsrs.Card, now time.Time) int {
	untilDue := c.Due.Sub(now).Seconds()
	if untilDue < 0 {
		untilDue = 0
	}
	p := int(untilDue * 0.1)
	if p < 60 {
		return 60
	}
	return p
}

func recFor(cardID int64, c gofsrs.Card, now time.Time) scheduler.Recommendation {
	return scheduler.Recommendation{
		CardID:           cardID,
		Time:             clock.FormatString(c.Due),
		PrecisionSeconds: precisionFor(c, now),
	}
}

// OnCardCreated seeds a fresh fsrs.Card due immediately.
func (s *Scheduler) OnCardCreated(cardID int64) (*scheduler.Recommendation, error) {
	now := s.clock.Now()
	c := gofsrs.NewCard()
	c.Due = now
	if err := s.save(cardID, c); err != nil {
		return nil, err
	}
	rec := recFor(cardID, c, now)
	return &rec, nil
}

// OnCardReplaced carries the fsrs.Card state forward unchanged onto the new
// id: FSRS's stability/difficulty model already degrades gracefully across
// a missed or altered review, so unlike SM-2's manual interval haircut, no
// separate replace-time adjustment is applied here.
func (s *Scheduler) OnCardReplaced(oldID, newID int64) (*scheduler.Recommendation, error) {
	c, ok, err := s.load(oldID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.OnCardCreated(newID)
	}
	if err := s.save(newID, c); err != nil {
		return nil, err
	}
	rec := recFor(newID, c, s.clock.Now())
	return &rec, nil
}

// gradeToRating maps the binary grade (plus optional feedback) onto
// go-fsrs's four-button rating scale, since the review session only ever
// records 0/1.
func gradeToRating(grade int, feedback *string) gofsrs.Rating {
	if grade == 0 {
		return gofsrs.Again
	}
	if feedback != nil {
		switch *feedback {
		case "too_easy":
			return gofsrs.Easy
		case "too_hard":
			return gofsrs.Hard
		}
	}
	return gofsrs.Good
}

// OnReview runs one FSRS scheduling step and persists the resulting card
// state.
func (s *Scheduler) OnReview(cardID int64, event scheduler.ReviewEvent) ([]scheduler.Recommendation, error) {
	c, _, err := s.load(cardID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rating := gradeToRating(event.Grade, event.Feedback)
	infos := s.engine.Repeat(c, now)
	info, ok := infos[rating]
	if !ok {
		return nil, fmt.Errorf("fsrs: no scheduling info for rating %v", rating)
	}

	if err := s.save(cardID, info.Card); err != nil {
		return nil, err
	}
	return []scheduler.Recommendation{recFor(cardID, info.Card, now)}, nil
}

// OnCardStatusChanged drops state for deleted cards; inactive cards keep
// theirs so un-suspending resumes the same FSRS trajectory.
func (s *Scheduler) OnCardStatusChanged(cardID int64, status string) error {
	if status != "deleted" {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM fsrs_state WHERE card_id = ?`, cardID)
	if err != nil {
		return fmt.Errorf("fsrs: delete state: %w", err)
	}
	return nil
}

// OnRelationsChanged has no special handling in this policy.
func (s *Scheduler) OnRelationsChanged(cardIDs []int64) ([]scheduler.Recommendation, error) {
	return nil, nil
}
