// Package ehr reads patient history out of the clinic's PostgreSQL EHR
// mirror. Access is read-only: this system annotates encounters with
// context, it never writes back into the record system.
package ehr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medecho/internal/logging"
)

// ErrNoHistory means the MRN has no records in the mirror.
var ErrNoHistory = errors.New("ehr: no history for patient")

// Record is one dated history line, categorized the way the mirror
// categorizes it (condition, medication, allergy, procedure, note).
type Record struct {
	Category    string
	Description string
	RecordedAt  time.Time
}

// pgQuerier is the slice of pgx used here; *pgxpool.Pool satisfies it and
// tests pass a mock.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repo reads patient history.
type Repo struct {
	db pgQuerier
}

// Connect opens a pool against databaseURL and returns a Repo over it.
func Connect(ctx context.Context, databaseURL string) (*Repo, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("ehr: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ehr: ping: %w", err)
	}
	lg := logging.WithComponent("ehr")
	lg.Info().Msg("connected to ehr mirror")
	return &Repo{db: pool}, pool, nil
}

// NewRepo wraps an existing querier. Test hook and pool reuse.
func NewRepo(db pgQuerier) *Repo {
	return &Repo{db: db}
}

const historyQuery = `
SELECT category, description, recorded_at
FROM patient_history
WHERE mrn = $1
ORDER BY recorded_at DESC
LIMIT 200`

// PatientHistory loads the history for an MRN and renders it as the text
// blob the clinical engine summarizes.
func (r *Repo) PatientHistory(ctx context.Context, mrn string) (string, error) {
	rows, err := r.db.Query(ctx, historyQuery, mrn)
	if err != nil {
		return "", fmt.Errorf("ehr: querying history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Category, &rec.Description, &rec.RecordedAt); err != nil {
			return "", fmt.Errorf("ehr: scanning history row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("ehr: reading history: %w", err)
	}
	if len(records) == 0 {
		return "", ErrNoHistory
	}
	return FormatHistory(records), nil
}

// FormatHistory renders records grouped by category, newest first within
// each group, in a stable category order.
func FormatHistory(records []Record) string {
	order := []string{"condition", "medication", "allergy", "procedure", "note"}
	byCategory := make(map[string][]Record)
	for _, rec := range records {
		cat := strings.ToLower(rec.Category)
		byCategory[cat] = append(byCategory[cat], rec)
	}

	headings := map[string]string{
		"condition":  "DIAGNOSES",
		"medication": "MEDICATIONS",
		"allergy":    "ALLERGIES",
		"procedure":  "PROCEDURES",
		"note":       "NOTES",
	}

	var b strings.Builder
	writeGroup := func(cat string) {
		recs := byCategory[cat]
		if len(recs) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		heading := headings[cat]
		if heading == "" {
			heading = strings.ToUpper(cat)
		}
		b.WriteString(heading + ":\n")
		for _, rec := range recs {
			fmt.Fprintf(&b, "- %s (%s)\n", rec.Description, rec.RecordedAt.Format("2006-01-02"))
		}
	}

	seen := make(map[string]bool)
	for _, cat := range order {
		writeGroup(cat)
		seen[cat] = true
	}
	// Unknown categories keep their records too, after the known groups.
	var extra []string
	for cat := range byCategory {
		if !seen[cat] {
			extra = append(extra, cat)
		}
	}
	sort.Strings(extra)
	for _, cat := range extra {
		writeGroup(cat)
	}
	return b.String()
}
