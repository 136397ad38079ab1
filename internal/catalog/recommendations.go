package catalog

import "database/sql"

// UpsertRecommendation inserts or replaces the at-most-one recommendation
// row for (card id, scheduler id). Only cards with status = active may
// carry recommendation rows; callers uphold that.
func (s *Store) UpsertRecommendation(tx *sql.Tx, rec Recommendation) error {
	_, err := tx.Exec(`
		INSERT INTO recommendations (card_id, scheduler_id, time, precision_seconds)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(card_id, scheduler_id) DO UPDATE SET
			time = excluded.time, precision_seconds = excluded.precision_seconds`,
		rec.CardID, rec.SchedulerID, rec.Time, rec.PrecisionSeconds)
	return err
}

// DeleteRecommendations removes every recommendation row for a card, the
// cleanup step when a card leaves active status.
func (s *Store) DeleteRecommendations(tx *sql.Tx, cardID int64) error {
	_, err := tx.Exec(`DELETE FROM recommendations WHERE card_id = ?`, cardID)
	return err
}

// Recommendations returns every recommendation row for a card (a card may
// have at most one per scheduler id, but may accumulate rows across
// scheduler switches over its lifetime).
func (s *Store) Recommendations(cardID int64) ([]Recommendation, error) {
	rows, err := s.db.Query(`
		SELECT card_id, scheduler_id, time, precision_seconds
		FROM recommendations WHERE card_id = ?`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []Recommendation
	for rows.Next() {
		var r Recommendation
		if err := rows.Scan(&r.CardID, &r.SchedulerID, &r.Time, &r.PrecisionSeconds); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
