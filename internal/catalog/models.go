package catalog

import "time"

// Record is one catalog row, keyed by identity.
type Record struct {
	Identity          string     `json:"identity"`
	OriginalFilename  string     `json:"original_filename"`
	Filename          string     `json:"filename"`
	ThumbnailFilename string     `json:"thumbnail_filename"`
	Placeholder       string     `json:"placeholder"`
	Width             int        `json:"width"`
	Height            int        `json:"height"`
	AspectRatio       float64    `json:"aspect_ratio"`
	Camera            *string    `json:"camera"`
	Lens              *string    `json:"lens"`
	CapturedAt        *time.Time `json:"captured_at"`
	ISO               *int       `json:"iso"`
	ShutterSpeed      *string    `json:"shutter_speed"`
	Aperture          *float64   `json:"aperture"`
	FocalLength       *float64   `json:"focal_length"`
	Keywords          []string   `json:"keywords"`
	Rating            *int       `json:"rating"`
	ColorLabel        *string    `json:"color_label"`
	SizeBytes         int64      `json:"size_bytes"`
	MimeType          string     `json:"mime_type"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ReconcileResult summarises a reconciliation pass.
type ReconcileResult struct {
	Kept    int
	Deleted []string
}
