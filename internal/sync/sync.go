// Package sync reconciles one scan's output with the catalog: an
// insert/unchanged/replace decision per scanned triple, a deletion sweep
// over everything in scope but unmatched, and a final relation-resolution
// pass, all committed in a single transaction.
package sync

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AM-Campbell/sr/internal/adapter"
	"github.com/AM-Campbell/sr/internal/catalog"
	"github.com/AM-Campbell/sr/internal/clock"
	"github.com/AM-Campbell/sr/internal/diagnostic"
	"github.com/AM-Campbell/sr/internal/jsonc"
	"github.com/AM-Campbell/sr/internal/scan"
	"github.com/AM-Campbell/sr/internal/scheduler"
)

// Stats tallies the per-triple decisions a sync made.
type Stats struct {
	New       int
	Updated   int
	Deleted   int
	Unchanged int
}

// scannedCard is one (triple, record, source config) entry after
// deduplicating a scan's tuples by triple: later occurrences win, but a
// triple's position in iteration order is fixed by its first occurrence.
type scannedCard struct {
	triple catalog.Triple
	record adapter.CardRecord
	config map[string]any
}

// Sync reconciles tuples (the output of scan.Scan) against store, given the
// original input paths that were scanned (used to compute the in-scope
// domain of comparison). sched may be nil, in which case no recommendation
// hooks are invoked. Returns the per-triple status counts.
func Sync(ctx context.Context, store *catalog.Store, sched scheduler.Scheduler, paths []string, tuples []scan.Tuple) (Stats, error) {
	sources, dirPrefixes := scopeOf(paths, tuples)
	scanned := flattenScanned(tuples)

	var stats Stats
	err := store.RunInTx(ctx, func(tx *sql.Tx) error {
		existing, err := store.ExistingInScopeTx(tx, sources, dirPrefixes)
		if err != nil {
			return err
		}

		matched := map[catalog.Triple]bool{}

		for _, sc := range scanned {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := syncOneCard(tx, store, sched, sc, existing, &stats); err != nil {
				return err
			}
			matched[sc.triple] = true
		}

		now := clock.NowString(store.Clock())
		for t, row := range existing {
			if matched[t] {
				continue
			}
			if err := store.SetCardStatus(tx, row.CardID, catalog.StatusDeleted, now); err != nil {
				return fmt.Errorf("sync: deletion sweep: %w", err)
			}
			if err := store.DeleteRecommendations(tx, row.CardID); err != nil {
				return fmt.Errorf("sync: deletion sweep: %w", err)
			}
			if sched != nil {
				if err := sched.OnCardStatusChanged(row.CardID, catalog.StatusDeleted); err != nil {
					diagnostic.Warn("scheduler %s: on_card_status_changed(%d, deleted): %v", sched.ID(), row.CardID, err)
				}
			}
			stats.Deleted++
		}

		var touched []int64
		for _, sc := range scanned {
			ids, err := syncRelations(tx, store, sc)
			if err != nil {
				return err
			}
			touched = append(touched, ids...)
		}
		if sched != nil && len(touched) > 0 {
			recs, err := sched.OnRelationsChanged(touched)
			if err != nil {
				diagnostic.Warn("scheduler %s: on_relations_changed: %v", sched.ID(), err)
			}
			for _, rec := range recs {
				upsertRecommendation(store, tx, sched.ID(), rec)
			}
		}

		return nil
	})
	return stats, err
}

func syncOneCard(tx *sql.Tx, store *catalog.Store, sched scheduler.Scheduler, sc scannedCard, existing map[catalog.Triple]catalog.ExistingRow, stats *Stats) error {
	contentJSON, err := jsonc.Marshal(sc.record.Content)
	if err != nil {
		diagnostic.Warn("sync: %s#%s: cannot marshal content: %v", sc.triple.SourcePath, sc.triple.CardKey, err)
		return nil
	}
	h := hashBytes(contentJSON)

	desired := catalog.StatusActive
	if suspended, _ := sc.config["suspended"].(bool); suspended {
		desired = catalog.StatusInactive
	}
	now := clock.NowString(store.Clock())

	row, ok := existing[sc.triple]
	switch {
	case !ok:
		id, err := store.InsertCard(tx, catalog.NewCard{
			SourcePath:  sc.triple.SourcePath,
			CardKey:     sc.triple.CardKey,
			Adapter:     sc.triple.Adapter,
			Content:     string(contentJSON),
			ContentHash: h,
			DisplayText: sc.record.DisplayText,
			Gradable:    sc.record.Gradable,
			SourceLine:  sc.record.SourceLine,
			CreatedAt:   now,
		}, desired)
		if err != nil {
			return fmt.Errorf("sync: insert %s#%s: %w", sc.triple.SourcePath, sc.triple.CardKey, err)
		}
		if err := store.SyncTags(tx, id, sc.record.Tags); err != nil {
			return fmt.Errorf("sync: tags for new card %d: %w", id, err)
		}
		if sched != nil && desired == catalog.StatusActive {
			invokeHook(store, tx, sched, sched.ID(), id, func() (*scheduler.Recommendation, error) {
				return sched.OnCardCreated(id)
			})
		}
		stats.New++

	case row.ContentHash == h:
		if err := store.SyncTags(tx, row.CardID, sc.record.Tags); err != nil {
			return fmt.Errorf("sync: tags for unchanged card %d: %w", row.CardID, err)
		}
		stats.Unchanged++

	default:
		newStatus := catalog.StatusActive
		if row.Status == catalog.StatusInactive {
			newStatus = catalog.StatusInactive
		}
		if err := store.SetCardStatus(tx, row.CardID, catalog.StatusDeleted, now); err != nil {
			return fmt.Errorf("sync: replace: mark old card %d deleted: %w", row.CardID, err)
		}
		if err := store.DeleteRecommendations(tx, row.CardID); err != nil {
			return fmt.Errorf("sync: replace: clear recommendations for %d: %w", row.CardID, err)
		}
		if err := store.RewriteCardKeyForReplace(tx, row.CardID); err != nil {
			return fmt.Errorf("sync: replace: rewrite old card %d key: %w", row.CardID, err)
		}
		newID, err := store.InsertCard(tx, catalog.NewCard{
			SourcePath:  sc.triple.SourcePath,
			CardKey:     sc.triple.CardKey,
			Adapter:     sc.triple.Adapter,
			Content:     string(contentJSON),
			ContentHash: h,
			DisplayText: sc.record.DisplayText,
			Gradable:    sc.record.Gradable,
			SourceLine:  sc.record.SourceLine,
			CreatedAt:   now,
		}, newStatus)
		if err != nil {
			return fmt.Errorf("sync: replace: insert new card for %d: %w", row.CardID, err)
		}
		if err := store.InsertRelation(tx, row.CardID, newID, catalog.RelationIsReplacedBy); err != nil {
			return fmt.Errorf("sync: replace: link %d->%d: %w", row.CardID, newID, err)
		}
		if err := store.SyncTags(tx, newID, sc.record.Tags); err != nil {
			return fmt.Errorf("sync: tags for replacement card %d: %w", newID, err)
		}
		if sched != nil && newStatus == catalog.StatusActive {
			invokeHook(store, tx, sched, sched.ID(), newID, func() (*scheduler.Recommendation, error) {
				return sched.OnCardReplaced(row.CardID, newID)
			})
		}
		stats.Updated++
	}
	return nil
}

// invokeHook runs a scheduler creation/replacement hook and upserts its
// recommendation. A hook failure is logged, never propagated: scheduler
// trouble must not abort the card's transaction.
func invokeHook(store *catalog.Store, tx *sql.Tx, sched scheduler.Scheduler, schedulerID string, cardID int64, hook func() (*scheduler.Recommendation, error)) {
	rec, err := hook()
	if err != nil {
		diagnostic.Warn("scheduler %s: hook failed for card %d: %v", schedulerID, cardID, err)
		return
	}
	if rec == nil {
		return
	}
	upsertRecommendation(store, tx, schedulerID, *rec)
}

// upsertRecommendation normalizes and stores one scheduler-returned
// recommendation; any failure is logged and swallowed.
func upsertRecommendation(store *catalog.Store, tx *sql.Tx, schedulerID string, rec scheduler.Recommendation) {
	normalizedTime, err := clock.NormalizeExternal(rec.Time)
	if err != nil {
		diagnostic.Warn("scheduler %s: card %d: unparseable recommendation time %q: %v", schedulerID, rec.CardID, rec.Time, err)
		return
	}
	if err := store.UpsertRecommendation(tx, catalog.Recommendation{
		CardID:           rec.CardID,
		SchedulerID:      schedulerID,
		Time:             normalizedTime,
		PrecisionSeconds: rec.PrecisionSeconds,
	}); err != nil {
		diagnostic.Warn("scheduler %s: cannot store recommendation for card %d: %v", schedulerID, rec.CardID, err)
	}
}

// syncRelations resolves and inserts one scanned card's declared relations,
// returning the card ids an inserted edge touched. Targets that don't
// resolve to an active row are silently dropped; a later sync heals them
// once the target exists.
func syncRelations(tx *sql.Tx, store *catalog.Store, sc scannedCard) ([]int64, error) {
	id, ok, err := store.ResolveActiveCardIDForTripleTx(tx, sc.triple)
	if err != nil {
		return nil, fmt.Errorf("sync: resolve %s#%s: %w", sc.triple.SourcePath, sc.triple.CardKey, err)
	}
	if !ok {
		return nil, nil
	}
	var touched []int64
	for _, rel := range sc.record.Relations {
		targetSource := sc.triple.SourcePath
		if rel.TargetSource != nil {
			targetSource = *rel.TargetSource
		}
		targetID, ok, err := store.ResolveActiveCardIDTx(tx, targetSource, rel.TargetKey)
		if err != nil {
			return nil, fmt.Errorf("sync: resolve relation target %s#%s: %w", targetSource, rel.TargetKey, err)
		}
		if !ok {
			continue
		}
		if err := store.InsertRelation(tx, id, targetID, rel.RelationType); err != nil {
			return nil, fmt.Errorf("sync: insert relation %d->%d: %w", id, targetID, err)
		}
		touched = append(touched, id, targetID)
	}
	return touched, nil
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// flattenScanned dedups a scan's tuples by triple: the last occurrence's
// record wins, but the triple keeps the slice position of its first
// occurrence.
func flattenScanned(tuples []scan.Tuple) []scannedCard {
	index := map[catalog.Triple]int{}
	var out []scannedCard
	for _, tup := range tuples {
		for _, rec := range tup.Cards {
			t := catalog.Triple{SourcePath: tup.SourcePath, CardKey: rec.Key, Adapter: tup.Adapter}
			sc := scannedCard{
				triple: t,
				record: rec,
				config: tup.Config,
			}
			if i, exists := index[t]; exists {
				out[i] = sc
			} else {
				index[t] = len(out)
				out = append(out, sc)
			}
		}
	}
	return out
}

// scopeOf computes the in-scope domain of comparison: every scanned tuple's
// own source path is an exact match (this alone covers files routed through
// a directory config, since the scanner emits one tuple per file); each
// scanned *path* contributes either an exact match (a file input) or a
// path-prefix match (a directory input). A path removed from disk since the
// scan stats as a non-directory and falls into the exact-match bucket, which
// is what lets its cards reach the deletion sweep.
func scopeOf(paths []string, tuples []scan.Tuple) (sources []string, dirPrefixes []string) {
	seen := map[string]bool{}
	addSource := func(s string) {
		if !seen[s] {
			seen[s] = true
			sources = append(sources, s)
		}
	}
	for _, tup := range tuples {
		addSource(tup.SourcePath)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if isDir(abs) {
			dirPrefixes = append(dirPrefixes, abs)
		} else {
			addSource(abs)
		}
	}
	return sources, dirPrefixes
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return info.IsDir()
}
