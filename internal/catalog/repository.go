package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TravisBumgarner/photo-gallery-sub000/internal/storage"
)

const (
	repoTimeout      = 5 * time.Second
	reconcileTimeout = time.Minute
)

// Repository provides access to catalog rows.
type Repository struct {
	db      *sql.DB
	dialect storage.Dialect
	nowFunc func() time.Time
}

// NewRepository builds a repository over an open database.
func NewRepository(db *sql.DB, dialect storage.Dialect) *Repository {
	return &Repository{db: db, dialect: dialect, nowFunc: time.Now}
}

// EnsureSchema creates the photos table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure catalog schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts a row or replaces every field of the existing one. created_at is
// kept from the first insert and updated_at is refreshed.
func (r *Repository) Upsert(ctx context.Context, rec Record) (Record, error) {
	if strings.TrimSpace(rec.Identity) == "" {
		return Record{}, ErrMissingIdentity
	}

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	now := r.nowFunc().UTC()
	keywords, err := encodeKeywords(rec.Keywords)
	if err != nil {
		return Record{}, err
	}

	query := r.dialect.Rebind(`
INSERT INTO photos (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (identity) DO UPDATE SET
	original_filename = excluded.original_filename,
	filename = excluded.filename,
	thumbnail_filename = excluded.thumbnail_filename,
	placeholder = excluded.placeholder,
	width = excluded.width,
	height = excluded.height,
	aspect_ratio = excluded.aspect_ratio,
	camera = excluded.camera,
	lens = excluded.lens,
	captured_at = excluded.captured_at,
	iso = excluded.iso,
	shutter_speed = excluded.shutter_speed,
	aperture = excluded.aperture,
	focal_length = excluded.focal_length,
	keywords = excluded.keywords,
	rating = excluded.rating,
	color_label = excluded.color_label,
	size_bytes = excluded.size_bytes,
	mime_type = excluded.mime_type,
	updated_at = excluded.updated_at
RETURNING created_at, updated_at;`)

	var createdAt, updatedAt string
	err = r.db.QueryRowContext(ctx, query,
		rec.Identity,
		rec.OriginalFilename,
		rec.Filename,
		rec.ThumbnailFilename,
		rec.Placeholder,
		rec.Width,
		rec.Height,
		rec.AspectRatio,
		nullString(rec.Camera),
		nullString(rec.Lens),
		nullTime(rec.CapturedAt),
		nullInt(rec.ISO),
		nullString(rec.ShutterSpeed),
		nullFloat(rec.Aperture),
		nullFloat(rec.FocalLength),
		keywords,
		nullInt(rec.Rating),
		nullString(rec.ColorLabel),
		rec.SizeBytes,
		rec.MimeType,
		formatTime(now),
		formatTime(now),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("upsert photo %s: %w", rec.Identity, err)
	}

	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return Record{}, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get fetches a single row.
func (r *Repository) Get(ctx context.Context, identity string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := r.dialect.Rebind(`SELECT ` + recordColumns + ` FROM photos WHERE identity = ?;`)
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, identity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, fmt.Errorf("get photo %s: %w", identity, err)
	}
	return rec, nil
}

// List returns every row, newest capture first.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM photos ORDER BY captured_at DESC, identity;`)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return out, nil
}

// Count returns the number of rows.
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return n, nil
}

// DeleteExcept removes every row whose identity is not in keep, in one transaction,
// and returns the removed identities.
func (r *Repository) DeleteExcept(ctx context.Context, keep map[string]struct{}) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reconcile: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT identity FROM photos;`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	rows.Close()

	if len(stale) > 0 {
		stmt, err := tx.PrepareContext(ctx, r.dialect.Rebind(`DELETE FROM photos WHERE identity = ?;`))
		if err != nil {
			return nil, fmt.Errorf("prepare delete: %w", err)
		}
		defer stmt.Close()

		for _, id := range stale {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return nil, fmt.Errorf("delete photo %s: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconcile: %w", err)
	}
	return stale, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec                   Record
		camera, lens, shutter sql.NullString
		captured, label       sql.NullString
		iso, rating           sql.NullInt64
		aperture, focal       sql.NullFloat64
		keywords              string
		createdAt, updatedAt  string
	)
	err := row.Scan(
		&rec.Identity,
		&rec.OriginalFilename,
		&rec.Filename,
		&rec.ThumbnailFilename,
		&rec.Placeholder,
		&rec.Width,
		&rec.Height,
		&rec.AspectRatio,
		&camera,
		&lens,
		&captured,
		&iso,
		&shutter,
		&aperture,
		&focal,
		&keywords,
		&rating,
		&label,
		&rec.SizeBytes,
		&rec.MimeType,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return Record{}, err
	}

	rec.Camera = stringPtr(camera)
	rec.Lens = stringPtr(lens)
	rec.ShutterSpeed = stringPtr(shutter)
	rec.ColorLabel = stringPtr(label)
	rec.ISO = intPtr(iso)
	rec.Rating = intPtr(rating)
	rec.Aperture = floatPtr(aperture)
	rec.FocalLength = floatPtr(focal)
	if captured.Valid {
		t, err := parseTime(captured.String)
		if err != nil {
			return Record{}, err
		}
		rec.CapturedAt = &t
	}
	if err := json.Unmarshal([]byte(keywords), &rec.Keywords); err != nil {
		return Record{}, fmt.Errorf("decode keywords: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return Record{}, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func encodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	b, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("encode keywords: %w", err)
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
