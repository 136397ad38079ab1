package catalog

// Flags are free-form per-card annotations used for filtering. These are
// standalone operations committing immediately, independent of the
// sync/review transaction boundaries.

// AddFlag sets (or replaces the note on) a flag for a card.
func (s *Store) AddFlag(cardID int64, flag string, note *string, createdAt string) error {
	_, err := s.db.Exec(
		`INSERT INTO card_flags (card_id, flag, note, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(card_id, flag) DO UPDATE SET note = excluded.note`,
		cardID, flag, note, createdAt)
	return err
}

// RemoveFlag deletes a flag from a card, if present.
func (s *Store) RemoveFlag(cardID int64, flag string) error {
	_, err := s.db.Exec(`DELETE FROM card_flags WHERE card_id = ? AND flag = ?`, cardID, flag)
	return err
}

// GetFlags lists a card's flags.
func (s *Store) GetFlags(cardID int64) ([]Flag, error) {
	rows, err := s.db.Query(
		`SELECT card_id, flag, note, created_at FROM card_flags WHERE card_id = ?`, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var flags []Flag
	for rows.Next() {
		var f Flag
		if err := rows.Scan(&f.CardID, &f.Flag, &f.Note, &f.CreatedAt); err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}
