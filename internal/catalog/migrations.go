package catalog

import "fmt"

// Versioned migration runner: a metadata(key,value) table tracks
// schema_version, and each migration function runs once, in order.
type migration struct {
	version int
	name    string
	fn      func(*Store) error
}

var migrations = []migration{
	{1, "initial_schema", runMigration001InitialSchema},
}

func (s *Store) migrate() error {
	if err := s.ensureMetadataTable(); err != nil {
		return err
	}
	current, err := s.getSchemaVersion()
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := m.fn(s); err != nil {
			return fmt.Errorf("catalog: migration %d (%s): %w", m.version, m.name, err)
		}
		if err := s.setSchemaVersion(m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureMetadataTable() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	return err
}

func (s *Store) getSchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&v)
	if err != nil {
		return 0, nil
	}
	return v, nil
}

func (s *Store) setSchemaVersion(v int) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, v)
	return err
}

func runMigration001InitialSchema(s *Store) error {
	_, err := s.db.Exec(schema)
	return err
}
