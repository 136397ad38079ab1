package catalog

import (
	"database/sql"
	"fmt"
)

// InsertCard inserts a card row and its mandatory state row atomically: a
// state row exists for every card, created with it.
func (s *Store) InsertCard(tx *sql.Tx, nc NewCard, status string) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO cards (source_path, card_key, adapter, content, content_hash,
		                    display_text, gradable, source_line, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nc.SourcePath, nc.CardKey, nc.Adapter, nc.Content, nc.ContentHash,
		nc.DisplayText, nc.Gradable, nc.SourceLine, nc.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("catalog: insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("catalog: insert card: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO card_state (card_id, status, updated_at) VALUES (?, ?, ?)`,
		id, status, nc.CreatedAt); err != nil {
		return 0, fmt.Errorf("catalog: insert card_state: %w", err)
	}
	return id, nil
}

// SetCardStatus flips a card's status. Callers are responsible for legal
// transitions (deleted is terminal); the synchronizer and session enforce
// that through their own protocols, not the catalog.
func (s *Store) SetCardStatus(tx *sql.Tx, cardID int64, status, updatedAt string) error {
	res, err := tx.Exec(
		`UPDATE card_state SET status = ?, updated_at = ? WHERE card_id = ?`,
		status, updatedAt, cardID)
	if err != nil {
		return fmt.Errorf("catalog: set card status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog: set card status: %w", err)
	}
	if n == 0 {
		return ErrCardNotFound
	}
	return nil
}

// RewriteCardKeyForReplace releases a card's (source_path, card_key,
// adapter) uniqueness slot by appending "__replaced_<id>" to its key, so a
// replacement row can take the original key.
func (s *Store) RewriteCardKeyForReplace(tx *sql.Tx, cardID int64) error {
	_, err := tx.Exec(
		`UPDATE cards SET card_key = card_key || '__replaced_' || CAST(id AS TEXT) WHERE id = ?`,
		cardID)
	if err != nil {
		return fmt.Errorf("catalog: rewrite card key: %w", err)
	}
	return nil
}

// GetCard fetches a single card row by id, for callers (review session
// rendering, tests) that need the full record rather than a query
// projection.
func (s *Store) GetCard(cardID int64) (Card, error) {
	var c Card
	err := s.db.QueryRow(`
		SELECT id, source_path, card_key, adapter, content, content_hash,
		       display_text, gradable, source_line, created_at
		FROM cards WHERE id = ?`, cardID).Scan(
		&c.ID, &c.SourcePath, &c.CardKey, &c.Adapter, &c.Content, &c.ContentHash,
		&c.DisplayText, &c.Gradable, &c.SourceLine, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return Card{}, ErrCardNotFound
	}
	if err != nil {
		return Card{}, fmt.Errorf("catalog: get card: %w", err)
	}
	return c, nil
}

// GetCardState fetches the status row for a card id.
func (s *Store) GetCardState(cardID int64) (CardState, error) {
	var cs CardState
	cs.CardID = cardID
	err := s.db.QueryRow(`SELECT status, updated_at FROM card_state WHERE card_id = ?`, cardID).
		Scan(&cs.Status, &cs.UpdatedAt)
	if err == sql.ErrNoRows {
		return CardState{}, ErrCardNotFound
	}
	if err != nil {
		return CardState{}, fmt.Errorf("catalog: get card state: %w", err)
	}
	return cs, nil
}
