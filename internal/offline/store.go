// Package offline provides the durable local fallback buffer used when
// remote inference is unreachable. Raw audio, images, and per-encounter
// metadata are persisted under one root and flow through a pending to
// processed lifecycle once remote processing succeeds.
//
// Directory layout:
//
//	<root>/
//	    audio/        raw WAV recordings
//	    images/       captured medical images
//	    metadata/     one pending JSON record per encounter id
//	    processed/    records whose remote processing completed
//
// Writes are best-effort durable, not transactional: the store is a fallback
// buffer, not a system of record, and I/O errors propagate to the caller.
package offline

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"medecho/internal/logging"
)

// Record is the metadata persisted for one deferred encounter. The
// transcript field only ever holds redacted text.
type Record struct {
	EncounterID string    `json:"encounter_id"`
	CreatedAt   time.Time `json:"created_at"`
	Transcript  string    `json:"transcript,omitempty"`
	AudioPath   string    `json:"audio_path,omitempty"`
	ImagePath   string    `json:"image_path,omitempty"`
	Language    string    `json:"language,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// Stats summarizes the store's contents.
type Stats struct {
	Pending     int     `json:"pending_encounters"`
	AudioFiles  int     `json:"offline_audio_files"`
	ImageFiles  int     `json:"offline_images"`
	Processed   int     `json:"processed_encounters"`
	TotalSizeMB float64 `json:"total_size_mb"`
}

// Store is a content-addressed-by-encounter-id persistence layer over four
// sibling directories. Files are addressed purely by id; saving an id twice
// overwrites (last write wins). Concurrent saves with distinct ids are
// isolated by construction since each id maps to its own file.
type Store struct {
	root     string
	audioDir string
	imageDir string
	metaDir  string
	procDir  string
}

// Open creates the store's directory tree under root if needed.
func Open(root string) (*Store, error) {
	s := &Store{
		root:     root,
		audioDir: filepath.Join(root, "audio"),
		imageDir: filepath.Join(root, "images"),
		metaDir:  filepath.Join(root, "metadata"),
		procDir:  filepath.Join(root, "processed"),
	}
	for _, dir := range []string{s.audioDir, s.imageDir, s.metaDir, s.procDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return s, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string { return s.root }

// SaveAudio persists raw WAV audio for later processing and returns the
// file's location.
func (s *Store) SaveAudio(data []byte, id string) (string, error) {
	path := filepath.Join(s.audioDir, id+".wav")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("saving offline audio: %w", err)
	}
	lg := logging.WithComponent("offline")
	lg.Info().Str("path", path).Msg("offline audio saved")
	return path, nil
}

// SaveImage persists a medical image for later analysis. ext may be given
// with or without a leading dot.
func (s *Store) SaveImage(data []byte, id, ext string) (string, error) {
	if ext == "" {
		ext = ".png"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path := filepath.Join(s.imageDir, id+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("saving offline image: %w", err)
	}
	lg := logging.WithComponent("offline")
	lg.Info().Str("path", path).Msg("offline image saved")
	return path, nil
}

// SaveMetadata writes the pending record for id, overwriting any previous
// pending copy.
func (s *Store) SaveMetadata(rec Record, id string) (string, error) {
	rec.EncounterID = id
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	path := filepath.Join(s.metaDir, id+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("saving offline metadata: %w", err)
	}
	lg := logging.WithComponent("offline")
	lg.Info().Str("path", path).Msg("offline metadata saved")
	return path, nil
}

// ListPending returns every pending record in id order. A file that cannot
// be decoded is skipped with a warning rather than failing the listing.
func (s *Store) ListPending() ([]Record, error) {
	paths, err := filepath.Glob(filepath.Join(s.metaDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing pending metadata: %w", err)
	}
	sort.Strings(paths)

	log := logging.WithComponent("offline")
	pending := make([]Record, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			log.Warn().Str("path", p).Err(err).Msg("could not read pending record")
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warn().Str("path", p).Err(err).Msg("skipping corrupt pending record")
			continue
		}
		pending = append(pending, rec)
	}
	return pending, nil
}

// MarkProcessed moves the pending record for id into the processed
// collection. The move is a single rename, so the record is never countable
// as both pending and processed. Ids with no pending record are a no-op.
func (s *Store) MarkProcessed(id string) error {
	src := filepath.Join(s.metaDir, id+".json")
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(s.procDir, id+".json")
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("marking %s processed: %w", id, err)
	}
	lg := logging.WithComponent("offline")
	lg.Info().Str("encounter_id", id).Msg("encounter marked processed")
	return nil
}

// GetStats reports the store's contents. TotalSizeMB sums every file under
// the root, rounded to two decimals.
func (s *Store) GetStats() (Stats, error) {
	var stats Stats

	count := func(pattern string) (int, error) {
		paths, err := filepath.Glob(pattern)
		if err != nil {
			return 0, err
		}
		return len(paths), nil
	}

	var err error
	if stats.Pending, err = count(filepath.Join(s.metaDir, "*.json")); err != nil {
		return Stats{}, fmt.Errorf("counting pending: %w", err)
	}
	if stats.AudioFiles, err = count(filepath.Join(s.audioDir, "*.wav")); err != nil {
		return Stats{}, fmt.Errorf("counting audio: %w", err)
	}
	if stats.ImageFiles, err = count(filepath.Join(s.imageDir, "*")); err != nil {
		return Stats{}, fmt.Errorf("counting images: %w", err)
	}
	if stats.Processed, err = count(filepath.Join(s.procDir, "*.json")); err != nil {
		return Stats{}, fmt.Errorf("counting processed: %w", err)
	}

	var total int64
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("sizing store: %w", err)
	}
	stats.TotalSizeMB = math.Round(float64(total)/(1024*1024)*100) / 100
	return stats, nil
}
