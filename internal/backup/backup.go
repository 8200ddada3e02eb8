// Package backup snapshots the local encounter archive and offline store
// metadata into a single versioned JSON file, and restores from one. Backups
// carry only redacted material, the same rule the archive itself follows.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"medecho/internal/encounter"
	"medecho/internal/history"
	"medecho/internal/logging"
	"medecho/internal/offline"
)

// FormatVersion identifies the snapshot file layout.
const FormatVersion = 1

// Snapshot is the on-disk backup format.
type Snapshot struct {
	Version    int                   `json:"version"`
	CreatedAt  time.Time             `json:"created_at"`
	Encounters []encounter.Encounter `json:"encounters"`
	Pending    []offline.Record      `json:"pending"`
}

// RestoreMode controls how a restore treats existing archive contents.
type RestoreMode string

const (
	// RestoreMerge keeps existing encounters; snapshot entries with the
	// same id overwrite them.
	RestoreMerge RestoreMode = "merge"

	// RestoreReplace clears the archive first so it holds exactly the
	// snapshot contents afterwards.
	RestoreReplace RestoreMode = "replace"
)

// Backup writes a snapshot of hist and store to path and returns it.
func Backup(ctx context.Context, hist *history.Store, store *offline.Store, path string) (*Snapshot, error) {
	entries, err := hist.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("backup: listing archive: %w", err)
	}

	snap := &Snapshot{
		Version:    FormatVersion,
		CreatedAt:  time.Now().UTC(),
		Encounters: make([]encounter.Encounter, 0, len(entries)),
	}
	for _, e := range entries {
		enc, err := hist.Get(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("backup: loading encounter %s: %w", e.ID, err)
		}
		snap.Encounters = append(snap.Encounters, *enc)
	}

	if store != nil {
		if snap.Pending, err = store.ListPending(); err != nil {
			return nil, fmt.Errorf("backup: listing pending: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("backup: encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("backup: writing %s: %w", path, err)
	}

	lg := logging.WithComponent("backup")
	lg.Info().
		Str("path", path).
		Int("encounters", len(snap.Encounters)).
		Int("pending", len(snap.Pending)).
		Msg("backup written")
	return snap, nil
}

// RestoreResult summarizes what a restore changed.
type RestoreResult struct {
	Encounters int `json:"encounters"`
	Pending    int `json:"pending"`
}

// Restore loads a snapshot from path into hist and store. Under RestoreMerge
// snapshot entries overwrite archive rows with the same id and other rows
// survive; under RestoreReplace the archive is cleared first. Pending records
// are re-saved into the offline store so a later sync picks them up.
func Restore(ctx context.Context, hist *history.Store, store *offline.Store, path string, mode RestoreMode) (*RestoreResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("restore: reading %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("restore: decoding snapshot: %w", err)
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("restore: unsupported snapshot version %d", snap.Version)
	}

	if mode == RestoreReplace {
		if err := hist.Clear(ctx); err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
	}

	result := &RestoreResult{}
	for i := range snap.Encounters {
		if err := hist.Add(ctx, &snap.Encounters[i]); err != nil {
			return nil, fmt.Errorf("restore: encounter %s: %w", snap.Encounters[i].ID, err)
		}
		result.Encounters++
	}

	if store != nil {
		for _, rec := range snap.Pending {
			if _, err := store.SaveMetadata(rec, rec.EncounterID); err != nil {
				return nil, fmt.Errorf("restore: pending %s: %w", rec.EncounterID, err)
			}
			result.Pending++
		}
	}

	lg := logging.WithComponent("backup")
	lg.Info().
		Str("path", path).
		Str("mode", string(mode)).
		Int("encounters", result.Encounters).
		Int("pending", result.Pending).
		Msg("restore complete")
	return result, nil
}
