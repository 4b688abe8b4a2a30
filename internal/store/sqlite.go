package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ippclub/nxsync/internal/model"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DefaultBatchSize bounds the number of rows written by one multi-row statement
const DefaultBatchSize = 500

// SQLiteStore persists the synchronized tables in SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and migrates it
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already opened and migrated database
func NewWithDB(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger,
	}
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Truncate removes every synchronized row, children first
func (s *SQLiteStore) Truncate(ctx context.Context) error {
	for _, table := range []string{"youtube_links", "graphics_settings", "performance_profiles", "games", "game_groups"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	s.logger.Info("truncated synchronized tables")
	return nil
}

// EnsureGroups inserts the groups that do not exist yet
func (s *SQLiteStore) EnsureGroups(ctx context.Context, ids []string) error {
	for _, chunk := range chunks(len(ids), DefaultBatchSize) {
		batch := ids[chunk[0]:chunk[1]]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		query := "INSERT INTO game_groups (id) VALUES " + placeholders(len(batch), 1) +
			" ON CONFLICT(id) DO NOTHING"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to ensure groups: %w", err)
		}
	}
	return nil
}

// TouchGroups moves last_updated of each group and all of its games forward to
// the given time. Rows already at or past that time are left alone.
func (s *SQLiteStore) TouchGroups(ctx context.Context, touched map[string]time.Time) error {
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		at := touched[id].UTC()
		_, err := s.db.ExecContext(ctx,
			`UPDATE game_groups SET last_updated = ? WHERE id = ? AND (last_updated IS NULL OR last_updated < ?)`,
			at, id, at)
		if err != nil {
			return fmt.Errorf("failed to touch group %s: %w", id, err)
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE games SET last_updated = ? WHERE group_id = ? AND (last_updated IS NULL OR last_updated < ?)`,
			at, id, at)
		if err != nil {
			return fmt.Errorf("failed to touch games of group %s: %w", id, err)
		}
	}
	return nil
}

// ListGameGroups gets all groups
func (s *SQLiteStore) ListGameGroups(ctx context.Context) ([]*model.DBGameGroup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, last_updated FROM game_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []*model.DBGameGroup
	for rows.Next() {
		g := &model.DBGameGroup{}
		if err := rows.Scan(&g.ID, &g.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpsertGames writes games in batches of batchSize, fully overwriting the
// descriptive columns of existing rows. last_updated is not touched.
func (s *SQLiteStore) UpsertGames(ctx context.Context, games []*model.DBGame, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	const cols = 9
	for _, chunk := range chunks(len(games), batchSize) {
		batch := games[chunk[0]:chunk[1]]
		args := make([]any, 0, len(batch)*cols)
		for _, g := range batch {
			args = append(args,
				g.ID,
				g.GroupID,
				encodeList(g.Names),
				g.Publisher,
				g.ReleaseDate,
				g.SizeInBytes,
				g.IconURL,
				g.BannerURL,
				encodeList(g.Screenshots),
			)
		}
		query := `
			INSERT INTO games (id, group_id, names, publisher, release_date, size_in_bytes, icon_url, banner_url, screenshots)
			VALUES ` + placeholders(len(batch), cols) + `
			ON CONFLICT(id) DO UPDATE SET
				group_id = excluded.group_id,
				names = excluded.names,
				publisher = excluded.publisher,
				release_date = excluded.release_date,
				size_in_bytes = excluded.size_in_bytes,
				icon_url = excluded.icon_url,
				banner_url = excluded.banner_url,
				screenshots = excluded.screenshots
		`
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert games: %w", err)
		}
	}
	return nil
}

// ListGames gets all games
func (s *SQLiteStore) ListGames(ctx context.Context) ([]*model.DBGame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, names, publisher, release_date, size_in_bytes, icon_url, banner_url, screenshots, last_updated
		FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []*model.DBGame
	for rows.Next() {
		g := &model.DBGame{}
		var names, screenshots string
		err := rows.Scan(
			&g.ID,
			&g.GroupID,
			&names,
			&g.Publisher,
			&g.ReleaseDate,
			&g.SizeInBytes,
			&g.IconURL,
			&g.BannerURL,
			&screenshots,
			&g.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		g.Names = decodeList(names)
		g.Screenshots = decodeList(screenshots)
		games = append(games, g)
	}
	return games, rows.Err()
}

// ListPerformanceProfiles gets all performance profiles
func (s *SQLiteStore) ListPerformanceProfiles(ctx context.Context) ([]*model.DBPerformanceProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, game_version, suffix, profiles, contributor, source_pr_url, status, last_updated
		FROM performance_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.DBPerformanceProfile
	for rows.Next() {
		p := &model.DBPerformanceProfile{}
		var payload, contributor string
		err := rows.Scan(
			&p.ID,
			&p.GroupID,
			&p.GameVersion,
			&p.Suffix,
			&payload,
			&contributor,
			&p.SourcePRURL,
			&p.Status,
			&p.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan performance profile: %w", err)
		}
		p.Profiles = json.RawMessage(payload)
		p.Contributor = decodeList(contributor)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// InsertPerformanceProfile adds a new profile and sets its ID
func (s *SQLiteStore) InsertPerformanceProfile(ctx context.Context, p *model.DBPerformanceProfile) error {
	query := `
		INSERT INTO performance_profiles (group_id, game_version, suffix, profiles, contributor, source_pr_url, status, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		p.GroupID,
		p.GameVersion,
		p.Suffix,
		string(p.Profiles),
		encodeList(p.Contributor),
		p.SourcePRURL,
		statusOrDefault(p.Status),
		p.LastUpdated.UTC(),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert performance profile: %w", err)
	}
	return nil
}

// UpdatePerformanceProfile rewrites the content columns of a profile by ID
func (s *SQLiteStore) UpdatePerformanceProfile(ctx context.Context, p *model.DBPerformanceProfile) error {
	query := `
		UPDATE performance_profiles
		SET profiles = ?, contributor = ?, source_pr_url = ?, last_updated = ?
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, query,
		string(p.Profiles),
		encodeList(p.Contributor),
		p.SourcePRURL,
		p.LastUpdated.UTC(),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update performance profile: %w", err)
	}
	return nil
}

// DeletePerformanceProfile removes a profile by ID
func (s *SQLiteStore) DeletePerformanceProfile(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM performance_profiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete performance profile: %w", err)
	}
	return nil
}

// ListGraphicsSettings gets all graphics settings
func (s *SQLiteStore) ListGraphicsSettings(ctx context.Context) ([]*model.DBGraphicsSettings, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, settings, contributor, status, last_updated
		FROM graphics_settings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query graphics settings: %w", err)
	}
	defer rows.Close()

	var settings []*model.DBGraphicsSettings
	for rows.Next() {
		g := &model.DBGraphicsSettings{}
		var payload, contributor string
		if err := rows.Scan(&g.ID, &g.GroupID, &payload, &contributor, &g.Status, &g.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan graphics settings: %w", err)
		}
		g.Settings = json.RawMessage(payload)
		g.Contributor = decodeList(contributor)
		settings = append(settings, g)
	}
	return settings, rows.Err()
}

// InsertGraphicsSettings adds new settings and sets their ID
func (s *SQLiteStore) InsertGraphicsSettings(ctx context.Context, g *model.DBGraphicsSettings) error {
	query := `
		INSERT INTO graphics_settings (group_id, settings, contributor, status, last_updated)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		g.GroupID,
		string(g.Settings),
		encodeList(g.Contributor),
		statusOrDefault(g.Status),
		g.LastUpdated.UTC(),
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to insert graphics settings: %w", err)
	}
	return nil
}

// UpdateGraphicsSettings rewrites the content columns of settings by ID
func (s *SQLiteStore) UpdateGraphicsSettings(ctx context.Context, g *model.DBGraphicsSettings) error {
	query := `UPDATE graphics_settings SET settings = ?, contributor = ?, last_updated = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, string(g.Settings), encodeList(g.Contributor), g.LastUpdated.UTC(), g.ID)
	if err != nil {
		return fmt.Errorf("failed to update graphics settings: %w", err)
	}
	return nil
}

// DeleteGraphicsSettings removes settings by ID
func (s *SQLiteStore) DeleteGraphicsSettings(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM graphics_settings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete graphics settings: %w", err)
	}
	return nil
}

// ListYoutubeLinks gets all video links
func (s *SQLiteStore) ListYoutubeLinks(ctx context.Context) ([]*model.DBYoutubeLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, url, notes, submitted_by, status, submitted_at
		FROM youtube_links ORDER BY group_id, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query youtube links: %w", err)
	}
	defer rows.Close()

	var links []*model.DBYoutubeLink
	for rows.Next() {
		l := &model.DBYoutubeLink{}
		if err := rows.Scan(&l.ID, &l.GroupID, &l.URL, &l.Notes, &l.SubmittedBy, &l.Status, &l.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan youtube link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// ReplaceYoutubeLinks deletes every link of the group and inserts links in one statement
func (s *SQLiteStore) ReplaceYoutubeLinks(ctx context.Context, groupID string, links []*model.DBYoutubeLink) error {
	if err := s.DeleteYoutubeLinks(ctx, groupID); err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}

	const cols = 6
	args := make([]any, 0, len(links)*cols)
	for _, l := range links {
		args = append(args, groupID, l.URL, l.Notes, l.SubmittedBy, statusOrDefault(l.Status), l.SubmittedAt.UTC())
	}
	query := `INSERT INTO youtube_links (group_id, url, notes, submitted_by, status, submitted_at) VALUES ` +
		placeholders(len(links), cols)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert youtube links: %w", err)
	}
	return nil
}

// DeleteYoutubeLinks removes every link of the group
func (s *SQLiteStore) DeleteYoutubeLinks(ctx context.Context, groupID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM youtube_links WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("failed to delete youtube links: %w", err)
	}
	return nil
}

func statusOrDefault(status string) string {
	if status == "" {
		return model.StatusApproved
	}
	return status
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func decodeList(s string) []string {
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err != nil || list == nil {
		return []string{}
	}
	return list
}

// placeholders renders "(?, ?), (?, ?)" for rows x cols
func placeholders(rows, cols int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	parts := make([]string, rows)
	for i := range parts {
		parts[i] = row
	}
	return strings.Join(parts, ", ")
}

// chunks splits [0, n) into [start, end) ranges of at most size
func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		out = append(out, [2]int{start, end})
	}
	return out
}
