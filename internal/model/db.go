package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Review states of community submitted rows. The sync pipeline writes Status
// only when inserting; the webhook owns every later transition.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// DBGameGroup represents a game_groups row
type DBGameGroup struct {
	ID          string       `db:"id"`
	LastUpdated sql.NullTime `db:"last_updated"`
}

// DBGame represents a games row, one per concrete title ID
type DBGame struct {
	ID          string         `db:"id"`
	GroupID     string         `db:"group_id"`
	Names       []string       `db:"names"`
	Publisher   sql.NullString `db:"publisher"`
	ReleaseDate sql.NullInt64  `db:"release_date"` // YYYYMMDD
	SizeInBytes sql.NullInt64  `db:"size_in_bytes"`
	IconURL     sql.NullString `db:"icon_url"`
	BannerURL   sql.NullString `db:"banner_url"`
	Screenshots []string       `db:"screenshots"`
	LastUpdated sql.NullTime   `db:"last_updated"`
}

// DBPerformanceProfile represents a performance_profiles row
type DBPerformanceProfile struct {
	ID          int64           `db:"id"`
	GroupID     string          `db:"group_id"`
	GameVersion string          `db:"game_version"`
	Suffix      string          `db:"suffix"`
	Profiles    json.RawMessage `db:"profiles"`
	Contributor []string        `db:"contributor"`
	SourcePRURL sql.NullString  `db:"source_pr_url"`
	Status      string          `db:"status"`
	LastUpdated time.Time       `db:"last_updated"`
}

// DBGraphicsSettings represents a graphics_settings row
type DBGraphicsSettings struct {
	ID          int64           `db:"id"`
	GroupID     string          `db:"group_id"`
	Settings    json.RawMessage `db:"settings"`
	Contributor []string        `db:"contributor"`
	Status      string          `db:"status"`
	LastUpdated time.Time       `db:"last_updated"`
}

// DBYoutubeLink represents a youtube_links row
type DBYoutubeLink struct {
	ID          int64     `db:"id"`
	GroupID     string    `db:"group_id"`
	URL         string    `db:"url"`
	Notes       string    `db:"notes"`
	SubmittedBy string    `db:"submitted_by"`
	Status      string    `db:"status"`
	SubmittedAt time.Time `db:"submitted_at"`
}
