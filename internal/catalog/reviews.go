package catalog

import "database/sql"

// AppendReviewEvent appends one row to the append-only review log. Rows
// are never mutated or deleted; undo in the review session rolls back
// in-memory cursor state only, never this log.
func (s *Store) AppendReviewEvent(tx *sql.Tx, ev ReviewEvent) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO review_log (card_id, session_id, timestamp, grade,
		                         time_on_front_ms, time_on_card_ms, feedback, response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.CardID, ev.SessionID, ev.Timestamp, ev.Grade,
		ev.TimeOnFrontMs, ev.TimeOnCardMs, ev.Feedback, ev.Response)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
