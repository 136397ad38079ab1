package catalog

import "database/sql"

// InsertRelation inserts a directed edge idempotently. Used both for the
// synchronizer's synthetic is_replaced_by edges and for adapter-declared
// relation types resolved by the relation sync pass.
func (s *Store) InsertRelation(tx *sql.Tx, upstream, downstream int64, relationType string) error {
	_, err := tx.Exec(`
		INSERT OR IGNORE INTO card_relations (upstream_card_id, downstream_card_id, relation_type)
		VALUES (?, ?, ?)`, upstream, downstream, relationType)
	return err
}

// MutuallyExclusiveSiblings returns the set of card ids linked to cardID by
// a mutually_exclusive relation in either direction: the relation is
// symmetric but stored once, so both edge directions are searched.
func (s *Store) MutuallyExclusiveSiblings(cardID int64) ([]int64, error) {
	return mutuallyExclusiveSiblings(s.db, cardID)
}

func mutuallyExclusiveSiblings(q querier, cardID int64) ([]int64, error) {
	rows, err := q.Query(`
		SELECT downstream_card_id AS sibling FROM card_relations
		WHERE upstream_card_id = ? AND relation_type = 'mutually_exclusive'
		UNION
		SELECT upstream_card_id AS sibling FROM card_relations
		WHERE downstream_card_id = ? AND relation_type = 'mutually_exclusive'`,
		cardID, cardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var siblings []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		siblings = append(siblings, id)
	}
	return siblings, rows.Err()
}

// ResolveActiveCardID finds the id of the currently active row for a triple,
// used by the relation sync pass to resolve a declared relation's endpoints.
func (s *Store) ResolveActiveCardID(sourcePath, cardKey string) (int64, bool, error) {
	return resolveActiveCardID(s.db, sourcePath, cardKey)
}

// ResolveActiveCardIDTx is ResolveActiveCardID run inside the synchronizer's
// transaction.
func (s *Store) ResolveActiveCardIDTx(tx *sql.Tx, sourcePath, cardKey string) (int64, bool, error) {
	return resolveActiveCardID(tx, sourcePath, cardKey)
}

func resolveActiveCardID(q querier, sourcePath, cardKey string) (int64, bool, error) {
	var id int64
	err := q.QueryRow(`
		SELECT c.id FROM cards c JOIN card_state cs ON c.id = cs.card_id
		WHERE c.source_path = ? AND c.card_key = ? AND cs.status = 'active'`,
		sourcePath, cardKey).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// ResolveActiveCardIDForTriple is like ResolveActiveCardID but also
// constrains on adapter, used to resolve a scanned card's own id.
func (s *Store) ResolveActiveCardIDForTriple(t Triple) (int64, bool, error) {
	return resolveActiveCardIDForTriple(s.db, t)
}

// ResolveActiveCardIDForTripleTx is ResolveActiveCardIDForTriple run inside
// the synchronizer's transaction.
func (s *Store) ResolveActiveCardIDForTripleTx(tx *sql.Tx, t Triple) (int64, bool, error) {
	return resolveActiveCardIDForTriple(tx, t)
}

func resolveActiveCardIDForTriple(q querier, t Triple) (int64, bool, error) {
	var id int64
	err := q.QueryRow(`
		SELECT c.id FROM cards c JOIN card_state cs ON c.id = cs.card_id
		WHERE c.source_path = ? AND c.card_key = ? AND c.adapter = ? AND cs.status = 'active'`,
		t.SourcePath, t.CardKey, t.Adapter).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
