package catalog

import (
	"database/sql"
	"fmt"
	"strings"
)

// querier is satisfied by both *sql.DB and *sql.Tx. The synchronizer runs
// its whole pass inside one transaction, so its reads must go through that
// same *sql.Tx rather than a separate pooled connection that would not see
// the transaction's uncommitted writes; read-only callers (review session,
// deck aggregator) pass the Store's *sql.DB instead.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// ExistingInScope returns the in-scope existing (non-deleted) catalog rows
// keyed by triple: rows whose source_path equals one of sources, or has one
// of dirPrefixes as a path prefix. Cards from untouched sources never
// appear and so are never disturbed by a sync.
func (s *Store) ExistingInScope(sources []string, dirPrefixes []string) (map[Triple]ExistingRow, error) {
	return existingInScope(s.db, sources, dirPrefixes)
}

// ExistingInScopeTx is ExistingInScope run inside the synchronizer's
// transaction.
func (s *Store) ExistingInScopeTx(tx *sql.Tx, sources []string, dirPrefixes []string) (map[Triple]ExistingRow, error) {
	return existingInScope(tx, sources, dirPrefixes)
}

func existingInScope(q querier, sources []string, dirPrefixes []string) (map[Triple]ExistingRow, error) {
	if len(sources) == 0 && len(dirPrefixes) == 0 {
		return map[Triple]ExistingRow{}, nil
	}

	var conds []string
	var args []any

	if len(sources) > 0 {
		placeholders := make([]string, len(sources))
		for i, src := range sources {
			placeholders[i] = "?"
			args = append(args, src)
		}
		conds = append(conds, fmt.Sprintf("c.source_path IN (%s)", strings.Join(placeholders, ",")))
	}
	for _, dir := range dirPrefixes {
		conds = append(conds, "c.source_path LIKE ?")
		args = append(args, dir+"/%")
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.source_path, c.card_key, c.adapter, c.content_hash, cs.status
		FROM cards c JOIN card_state cs ON c.id = cs.card_id
		WHERE (%s) AND cs.status IN ('active', 'inactive')`, strings.Join(conds, " OR "))

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: existing in scope: %w", err)
	}
	defer rows.Close()

	result := map[Triple]ExistingRow{}
	for rows.Next() {
		var t Triple
		var r ExistingRow
		if err := rows.Scan(&r.CardID, &t.SourcePath, &t.CardKey, &t.Adapter, &r.ContentHash, &r.Status); err != nil {
			return nil, err
		}
		result[t] = r
	}
	return result, rows.Err()
}

// DueCandidate is one row of a next-due-card query result.
type DueCandidate struct {
	ID         int64
	SourcePath string
	Adapter    string
	Content    string
	Gradable   bool
	SourceLine int
}

// CardFilter narrows the due-card query to a review session's scope.
type CardFilter struct {
	Tag         string // "" = no filter
	PathPrefix  string // "" = no filter
	Flag        string // "" = no filter
	ExcludedIDs []int64
}

func (f CardFilter) clause() (string, []any) {
	var clauses []string
	var args []any
	if f.Tag != "" {
		clauses = append(clauses, "c.id IN (SELECT card_id FROM card_tags WHERE tag = ?)")
		args = append(args, f.Tag)
	}
	if f.PathPrefix != "" {
		clauses = append(clauses, "c.source_path LIKE ?")
		args = append(args, f.PathPrefix+"%")
	}
	if f.Flag != "" {
		clauses = append(clauses, "c.id IN (SELECT card_id FROM card_flags WHERE flag = ?)")
		args = append(args, f.Flag)
	}
	if len(f.ExcludedIDs) > 0 {
		placeholders := make([]string, len(f.ExcludedIDs))
		for i, id := range f.ExcludedIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, fmt.Sprintf("c.id NOT IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// NextDueCard returns the single highest-priority due card for the given
// filter, or (DueCandidate{}, false, nil) if none match. A card is eligible
// if it has no recommendation row or its recommendation time has passed.
// Ordering: cards with a recommendation sort before those without; within
// each group, earliest time first; ties by ascending card id.
func (s *Store) NextDueCard(now string, f CardFilter) (DueCandidate, bool, error) {
	extra, args := f.clause()
	query := fmt.Sprintf(`
		SELECT c.id, c.source_path, c.adapter, c.content, c.gradable, c.source_line
		FROM cards c
		JOIN card_state cs ON c.id = cs.card_id
		LEFT JOIN recommendations r ON c.id = r.card_id
		WHERE cs.status = 'active' AND c.gradable = 1
		  AND (r.time IS NULL OR r.time <= ?)%s
		ORDER BY CASE WHEN r.time IS NULL THEN 1 ELSE 0 END, r.time ASC, c.id ASC
		LIMIT 1`, extra)

	allArgs := append([]any{now}, args...)
	var d DueCandidate
	err := s.db.QueryRow(query, allArgs...).Scan(
		&d.ID, &d.SourcePath, &d.Adapter, &d.Content, &d.Gradable, &d.SourceLine)
	if err == sql.ErrNoRows {
		return DueCandidate{}, false, nil
	}
	if err != nil {
		return DueCandidate{}, false, fmt.Errorf("catalog: next due card: %w", err)
	}
	return d, true, nil
}

// RemainingCount is the count of cards NextDueCard would still surface.
func (s *Store) RemainingCount(now string, f CardFilter) (int, error) {
	extra, args := f.clause()
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM cards c
		JOIN card_state cs ON c.id = cs.card_id
		LEFT JOIN recommendations r ON c.id = r.card_id
		WHERE cs.status = 'active' AND c.gradable = 1
		  AND (r.time IS NULL OR r.time <= ?)%s`, extra)

	allArgs := append([]any{now}, args...)
	var n int
	if err := s.db.QueryRow(query, allArgs...).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: remaining count: %w", err)
	}
	return n, nil
}

// DeckRow is one row of the deck aggregator's source material: every
// gradable, non-deleted card's source path, status, and due-ness.
type DeckRow struct {
	SourcePath string
	Status     string
	IsDue      bool
}

// DeckRows returns the rows the deck aggregator projects into a tree.
func (s *Store) DeckRows(now string) ([]DeckRow, error) {
	rows, err := s.db.Query(`
		SELECT c.source_path, cs.status,
		       CASE WHEN r.time IS NOT NULL AND r.time <= ? THEN 1 ELSE 0 END as is_due
		FROM cards c
		JOIN card_state cs ON c.id = cs.card_id
		LEFT JOIN recommendations r ON c.id = r.card_id
		WHERE c.gradable = 1 AND cs.status IN ('active', 'inactive')`, now)
	if err != nil {
		return nil, fmt.Errorf("catalog: deck rows: %w", err)
	}
	defer rows.Close()

	var out []DeckRow
	for rows.Next() {
		var d DeckRow
		var isDue int
		if err := rows.Scan(&d.SourcePath, &d.Status, &isDue); err != nil {
			return nil, err
		}
		d.IsDue = isDue == 1
		out = append(out, d)
	}
	return out, rows.Err()
}
