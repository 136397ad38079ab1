package catalog

import "database/sql"

// SyncTags makes card_id's tag rows exactly equal to tags: add missing,
// remove extras. Tags are authoritative from the latest scan of a card's
// source, so this is always a full replace, never an append.
func (s *Store) SyncTags(tx *sql.Tx, cardID int64, tags []string) error {
	rows, err := tx.Query(`SELECT tag FROM card_tags WHERE card_id = ?`, cardID)
	if err != nil {
		return err
	}
	existing := map[string]bool{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			rows.Close()
			return err
		}
		existing[tag] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	wanted := map[string]bool{}
	for _, t := range tags {
		wanted[t] = true
	}

	for t := range wanted {
		if !existing[t] {
			if _, err := tx.Exec(
				`INSERT OR IGNORE INTO card_tags (card_id, tag) VALUES (?, ?)`, cardID, t); err != nil {
				return err
			}
		}
	}
	for t := range existing {
		if !wanted[t] {
			if _, err := tx.Exec(
				`DELETE FROM card_tags WHERE card_id = ? AND tag = ?`, cardID, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// CardTags returns the current tag set for a card, sorted by the caller if
// order matters — insertion order is not meaningful here.
func (s *Store) CardTags(cardID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM card_tags WHERE card_id = ?`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
