package catalog

// Timestamps are stored as RFC 3339 text so both engines round-trip them identically.
var schemaStatements = []string{`
CREATE TABLE IF NOT EXISTS photos (
	identity           TEXT PRIMARY KEY,
	original_filename  TEXT NOT NULL,
	filename           TEXT NOT NULL,
	thumbnail_filename TEXT NOT NULL,
	placeholder        TEXT NOT NULL DEFAULT '',
	width              INTEGER NOT NULL,
	height             INTEGER NOT NULL,
	aspect_ratio       DOUBLE PRECISION NOT NULL,
	camera             TEXT,
	lens               TEXT,
	captured_at        TEXT,
	iso                INTEGER,
	shutter_speed      TEXT,
	aperture           DOUBLE PRECISION,
	focal_length       DOUBLE PRECISION,
	keywords           TEXT NOT NULL DEFAULT '[]',
	rating             INTEGER,
	color_label        TEXT,
	size_bytes         BIGINT NOT NULL,
	mime_type          TEXT NOT NULL,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_captured_at ON photos (captured_at)`,
}

const recordColumns = `identity, original_filename, filename, thumbnail_filename, placeholder,
width, height, aspect_ratio, camera, lens, captured_at, iso, shutter_speed, aperture,
focal_length, keywords, rating, color_label, size_bytes, mime_type, created_at, updated_at`
