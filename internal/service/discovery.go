package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ippclub/nxsync/internal/attribution"
	"github.com/ippclub/nxsync/internal/model"
	"github.com/ippclub/nxsync/pkg/tree"
	"go.uber.org/zap"
)

// MainListPath is the title index inside the title repository
var MainListPath = filepath.Join("output", "main.json")

// Sources is everything discovered in the two mirrored repositories
type Sources struct {
	GroupIDs     []string               // every known group, sorted
	CustomGroups map[string]string      // title ID -> custom group ID
	Titles       map[string]model.Names // title ID -> display names
}

// GroupOf resolves the group of a title ID
func (s *Sources) GroupOf(titleID string) string {
	if g, ok := s.CustomGroups[titleID]; ok {
		return g
	}
	return attribution.BaseID(titleID)
}

// TitleIDs returns the title IDs of the main list in sorted order
func (s *Sources) TitleIDs() []string {
	ids := make([]string, 0, len(s.Titles))
	for id := range s.Titles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Discover collects the group IDs and titles referenced by the repositories.
// Missing optional directories are logged and treated as empty. A missing
// title index is an error.
func Discover(titledbPath, performancePath string, logger *zap.Logger) (*Sources, error) {
	groups := mapset.NewThreadUnsafeSet[string]()
	src := &Sources{CustomGroups: make(map[string]string)}

	customDir := filepath.Join(performancePath, string(attribution.Groups))
	files, err := listOptional(customDir, jsonFiles, logger)
	if err != nil {
		return nil, err
	}
	for _, name := range files {
		groupID := strings.TrimSuffix(name, ".json")
		var titles []string
		if err := readJSON(filepath.Join(customDir, name), &titles); err != nil {
			logger.Warn("skipping custom group", zap.String("path", name), zap.Error(err))
			continue
		}
		groups.Add(groupID)
		for _, id := range titles {
			src.CustomGroups[id] = groupID
		}
	}

	dirs, err := listOptional(filepath.Join(performancePath, dirName(attribution.Performance)), tree.Dirs, logger)
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		addDataGroup(groups, dir, logger)
	}

	for _, bucket := range []attribution.Bucket{attribution.Graphics, attribution.Videos} {
		files, err := listOptional(filepath.Join(performancePath, string(bucket)), jsonFiles, logger)
		if err != nil {
			return nil, err
		}
		for _, name := range files {
			addDataGroup(groups, strings.TrimSuffix(name, ".json"), logger)
		}
	}

	if err := readJSON(filepath.Join(titledbPath, MainListPath), &src.Titles); err != nil {
		return nil, fmt.Errorf("failed to load title index: %w", err)
	}
	for id := range src.Titles {
		groups.Add(src.GroupOf(id))
	}

	src.GroupIDs = groups.ToSlice()
	sort.Strings(src.GroupIDs)

	logger.Info("sources discovered",
		zap.Int("groups", len(src.GroupIDs)),
		zap.Int("custom_titles", len(src.CustomGroups)),
		zap.Int("titles", len(src.Titles)),
	)
	return src, nil
}

// addDataGroup registers a group named by a data file or profile directory.
// Custom groups only come from groups/, so other names must be title IDs.
func addDataGroup(groups mapset.Set[string], id string, logger *zap.Logger) {
	if !attribution.IsTitleID(id) {
		logger.Warn("ignoring entry that is not a group ID", zap.String("name", id))
		return
	}
	groups.Add(id)
}

func listOptional(dir string, list func(string) ([]string, error), logger *zap.Logger) ([]string, error) {
	names, err := list(dir)
	if tree.IsMissing(err) {
		logger.Warn("directory not found, treating as empty", zap.String("path", dir))
		return nil, nil
	}
	return names, err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
