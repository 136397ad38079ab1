// Package app wires the core components (catalog, scanner, synchronizer,
// scheduler registry, review session, deck aggregator) into one engine
// behind the scan/review/status/decks operations. No transport is
// attached; a CLI or HTTP front end sits on top of this type.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AM-Campbell/sr/internal/catalog"
	"github.com/AM-Campbell/sr/internal/clock"
	"github.com/AM-Campbell/sr/internal/config"
	"github.com/AM-Campbell/sr/internal/deck"
	"github.com/AM-Campbell/sr/internal/diagnostic"
	"github.com/AM-Campbell/sr/internal/review"
	"github.com/AM-Campbell/sr/internal/scan"
	"github.com/AM-Campbell/sr/internal/scheduler"
	"github.com/AM-Campbell/sr/internal/sync"

	// Registers the reference adapter and both scheduler policies so any
	// App constructed via Open can resolve settings.toml's scheduler name
	// and a source file's sr_adapter frontmatter key out of the box.
	_ "github.com/AM-Campbell/sr/internal/adapter/clozemd"
	_ "github.com/AM-Campbell/sr/internal/scheduler/fsrs"
	_ "github.com/AM-Campbell/sr/internal/scheduler/sm2"
)

// App is the durable handle a scan/review/status/decks invocation opens
// once and closes on exit.
type App struct {
	Dir       string
	Store     *catalog.Store
	Scheduler scheduler.Scheduler
	Settings  config.Settings
	clock     clock.Clock
}

// Open resolves dir's settings.toml and sr.db, constructs the scheduler
// named by Settings.Scheduler rooted at dir/schedulers/<name>, and returns a
// ready-to-use App. clk lets callers inject a fixed clock; production
// callers pass clock.Real().
func Open(dir string, clk clock.Clock) (*App, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("app: create app dir %s: %w", dir, err)
	}

	settingsPath := filepath.Join(dir, "settings.toml")
	if err := config.EnsureDefault(settingsPath); err != nil {
		return nil, fmt.Errorf("app: ensure settings: %w", err)
	}
	settings, err := config.Load(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("app: load settings: %w", err)
	}

	store, err := catalog.Open(filepath.Join(dir, "sr.db"), clk)
	if err != nil {
		return nil, fmt.Errorf("app: open catalog: %w", err)
	}

	schedDir := filepath.Join(dir, "schedulers", settings.Scheduler)
	if err := os.MkdirAll(schedDir, 0o755); err != nil {
		store.Close()
		return nil, fmt.Errorf("app: create scheduler dir: %w", err)
	}
	sched, err := scheduler.New(settings.Scheduler, schedDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("app: construct scheduler %q: %w", settings.Scheduler, err)
	}

	return &App{Dir: dir, Store: store, Scheduler: sched, Settings: settings, clock: clk}, nil
}

// Close releases the scheduler's storage handle and the catalog's database
// connection, in that order (the scheduler never outlives the catalog it
// reports against).
func (a *App) Close() error {
	var schedErr, storeErr error
	if a.Scheduler != nil {
		schedErr = a.Scheduler.Close()
	}
	storeErr = a.Store.Close()
	if schedErr != nil {
		return schedErr
	}
	return storeErr
}

// Scan runs the scanner over paths and reconciles the result into the
// catalog, then snapshots the resulting catalog state via CreateBackup.
// A backup failure is logged and does not fail the sync: the
// reconciliation already committed.
func (a *App) Scan(ctx context.Context, paths []string) (sync.Stats, error) {
	tuples := scan.Scan(paths)
	stats, err := sync.Sync(ctx, a.Store, a.Scheduler, paths, tuples)
	if err != nil {
		return stats, err
	}
	if _, backupErr := a.CreateBackup(); backupErr != nil {
		diagnostic.Warn("app: backup after scan: %v", backupErr)
	}
	return stats, nil
}

// Review runs a sync over paths, then opens a review session with the given
// tag/flag filters. Only when exactly one path is given is the session
// scoped to it (as a source-path prefix); with zero or several paths the
// session has no path filter and serves due cards from the whole catalog.
func (a *App) Review(ctx context.Context, paths []string, tagFilter, flagFilter string) (*review.Session, sync.Stats, error) {
	stats, err := a.Scan(ctx, paths)
	if err != nil {
		return nil, stats, err
	}
	pathFilter := ""
	if len(paths) == 1 {
		pathFilter = paths[0]
	}
	return review.New(a.Store, a.Scheduler, tagFilter, pathFilter, flagFilter), stats, nil
}

// Status reports catalog-wide aggregates.
type Status struct {
	Remaining int
}

// Status computes the current remaining-due count across the whole catalog.
func (a *App) Status() (Status, error) {
	n, err := a.Store.RemainingCount(clock.NowString(a.clock), catalog.CardFilter{})
	if err != nil {
		return Status{}, err
	}
	return Status{Remaining: n}, nil
}

// Decks builds the read-only deck tree a browse UI would render.
func (a *App) Decks() ([]*deck.Node, error) {
	return deck.Build(a.Store, a.clock)
}

// AddFlag sets (or replaces the note on) a flag for a card, the
// browse-side counterpart to the flag filter a review session scopes by.
func (a *App) AddFlag(cardID int64, flag string, note *string) error {
	return a.Store.AddFlag(cardID, flag, note, clock.NowString(a.clock))
}

// RemoveFlag deletes a flag from a card, if present.
func (a *App) RemoveFlag(cardID int64, flag string) error {
	return a.Store.RemoveFlag(cardID, flag)
}

// Flags lists a card's flags.
func (a *App) Flags(cardID int64) ([]catalog.Flag, error) {
	return a.Store.GetFlags(cardID)
}

// backupRetentionCount is how many of this app directory's backups
// CreateBackup keeps around after pruning.
const backupRetentionCount = 10

// CreateBackup snapshots the catalog file into a timestamped zip under
// dir/backups, pruning anything beyond backupRetentionCount. Scan calls
// this after a successful sync so every reconciliation leaves a recovery
// point behind it.
func (a *App) CreateBackup() (string, error) {
	bm := catalog.NewBackupManager(filepath.Join(a.Dir, "sr.db"), filepath.Join(a.Dir, "backups"))
	path, err := bm.CreateBackup(clock.NowCompact(a.clock))
	if err != nil {
		return "", err
	}
	if err := bm.CleanupOldBackups(backupRetentionCount); err != nil {
		return path, err
	}
	return path, nil
}
