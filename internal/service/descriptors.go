package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ippclub/nxsync/internal/attribution"
	"github.com/ippclub/nxsync/internal/model"
	"github.com/ippclub/nxsync/internal/store"
)

var errInvalidJSON = errors.New("invalid JSON")

var (
	_ descriptor[*model.DBPerformanceProfile] = (*performanceDescriptor)(nil)
	_ descriptor[*model.DBGraphicsSettings]   = (*graphicsDescriptor)(nil)
	_ descriptor[[]*model.DBYoutubeLink]      = (*videoDescriptor)(nil)
)

// performanceDescriptor syncs profiles/<GROUPID>/<VERSION>[$SUFFIX].json
type performanceDescriptor struct {
	store        *store.SQLiteStore
	contributors *attribution.ContributorMap
}

func (d *performanceDescriptor) table() string              { return "performance_profiles" }
func (d *performanceDescriptor) bucket() attribution.Bucket { return attribution.Performance }
func (d *performanceDescriptor) hierarchical() bool         { return true }

func (d *performanceDescriptor) deriveKey(groupID, name string) (string, bool) {
	version, suffix, ok := attribution.ParseProfileName(name)
	if !ok || !attribution.IsTitleID(groupID) {
		return "", false
	}
	return attribution.PerformanceKey(groupID, version, suffix), true
}

func (d *performanceDescriptor) existing(ctx context.Context) (map[string]existingRow, error) {
	profiles, err := d.store.ListPerformanceProfiles(ctx)
	if err != nil {
		return nil, err
	}
	rows := make(map[string]existingRow, len(profiles))
	for _, p := range profiles {
		key := attribution.PerformanceKey(p.GroupID, p.GameVersion, p.Suffix)
		rows[key] = existingRow{ID: p.ID, GroupID: p.GroupID, Stored: p.LastUpdated}
	}
	return rows, nil
}

func (d *performanceDescriptor) buildRecord(f sourceFile, data []byte) (*model.DBPerformanceProfile, error) {
	if !json.Valid(data) {
		return nil, errInvalidJSON
	}
	version, suffix, _ := attribution.ParseProfileName(f.Name)
	contributors, prURL := d.contributors.PerformanceCredit(f.Key)
	return &model.DBPerformanceProfile{
		GroupID:     f.GroupID,
		GameVersion: version,
		Suffix:      suffix,
		Profiles:    json.RawMessage(data),
		Contributor: contributors,
		SourcePRURL: sql.NullString{String: prURL, Valid: prURL != ""},
		Status:      model.StatusApproved,
		LastUpdated: f.Date,
	}, nil
}

func (d *performanceDescriptor) apply(ctx context.Context, rec *model.DBPerformanceProfile, prev *existingRow) (bool, error) {
	if prev == nil {
		return true, d.store.InsertPerformanceProfile(ctx, rec)
	}
	rec.ID = prev.ID
	return true, d.store.UpdatePerformanceProfile(ctx, rec)
}

func (d *performanceDescriptor) remove(ctx context.Context, row existingRow) error {
	return d.store.DeletePerformanceProfile(ctx, row.ID)
}

// graphicsDescriptor syncs graphics/<GROUPID>.json
type graphicsDescriptor struct {
	store        *store.SQLiteStore
	contributors *attribution.ContributorMap
}

func (d *graphicsDescriptor) table() string              { return "graphics_settings" }
func (d *graphicsDescriptor) bucket() attribution.Bucket { return attribution.Graphics }
func (d *graphicsDescriptor) hierarchical() bool         { return false }

func (d *graphicsDescriptor) deriveKey(groupID, _ string) (string, bool) {
	return groupID, attribution.IsTitleID(groupID)
}

func (d *graphicsDescriptor) existing(ctx context.Context) (map[string]existingRow, error) {
	settings, err := d.store.ListGraphicsSettings(ctx)
	if err != nil {
		return nil, err
	}
	rows := make(map[string]existingRow, len(settings))
	for _, g := range settings {
		rows[g.GroupID] = existingRow{ID: g.ID, GroupID: g.GroupID, Stored: g.LastUpdated}
	}
	return rows, nil
}

func (d *graphicsDescriptor) buildRecord(f sourceFile, data []byte) (*model.DBGraphicsSettings, error) {
	if !json.Valid(data) {
		return nil, errInvalidJSON
	}
	return &model.DBGraphicsSettings{
		GroupID:     f.GroupID,
		Settings:    json.RawMessage(data),
		Contributor: d.contributors.Contributors(attribution.Graphics, f.Key),
		Status:      model.StatusApproved,
		LastUpdated: f.Date,
	}, nil
}

func (d *graphicsDescriptor) apply(ctx context.Context, rec *model.DBGraphicsSettings, prev *existingRow) (bool, error) {
	if prev == nil {
		return true, d.store.InsertGraphicsSettings(ctx, rec)
	}
	rec.ID = prev.ID
	return true, d.store.UpdateGraphicsSettings(ctx, rec)
}

func (d *graphicsDescriptor) remove(ctx context.Context, row existingRow) error {
	return d.store.DeleteGraphicsSettings(ctx, row.ID)
}

// videoDescriptor syncs videos/<GROUPID>.json. One file holds every link of
// a group, so a changed file replaces all of the group's rows.
type videoDescriptor struct {
	store        *store.SQLiteStore
	contributors *attribution.ContributorMap
}

func (d *videoDescriptor) table() string              { return "youtube_links" }
func (d *videoDescriptor) bucket() attribution.Bucket { return attribution.Videos }
func (d *videoDescriptor) hierarchical() bool         { return false }

func (d *videoDescriptor) deriveKey(groupID, _ string) (string, bool) {
	return groupID, attribution.IsTitleID(groupID)
}

// existing keys groups by their newest submitted_at
func (d *videoDescriptor) existing(ctx context.Context) (map[string]existingRow, error) {
	links, err := d.store.ListYoutubeLinks(ctx)
	if err != nil {
		return nil, err
	}
	rows := make(map[string]existingRow)
	for _, l := range links {
		row, ok := rows[l.GroupID]
		if !ok || l.SubmittedAt.After(row.Stored) {
			rows[l.GroupID] = existingRow{GroupID: l.GroupID, Stored: l.SubmittedAt}
		}
	}
	return rows, nil
}

func (d *videoDescriptor) buildRecord(f sourceFile, data []byte) ([]*model.DBYoutubeLink, error) {
	var entries []model.VideoEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}

	contributors := d.contributors.Contributors(attribution.Videos, f.Key)
	links := make([]*model.DBYoutubeLink, 0, len(entries))
	for _, entry := range entries {
		url := strings.TrimSpace(entry.URL)
		if url == "" {
			continue
		}
		submittedBy := entry.SubmittedBy
		if submittedBy == "" && len(contributors) > 0 {
			submittedBy = contributors[0]
		}
		links = append(links, &model.DBYoutubeLink{
			GroupID:     f.GroupID,
			URL:         url,
			Notes:       entry.Notes,
			SubmittedBy: submittedBy,
			Status:      model.StatusApproved,
			SubmittedAt: f.Date,
		})
	}
	return links, nil
}

func (d *videoDescriptor) apply(ctx context.Context, links []*model.DBYoutubeLink, prev *existingRow) (bool, error) {
	if prev == nil && len(links) == 0 {
		return false, nil
	}
	if len(links) == 0 {
		return true, d.store.DeleteYoutubeLinks(ctx, prev.GroupID)
	}
	return true, d.store.ReplaceYoutubeLinks(ctx, links[0].GroupID, links)
}

func (d *videoDescriptor) remove(ctx context.Context, row existingRow) error {
	return d.store.DeleteYoutubeLinks(ctx, row.GroupID)
}
