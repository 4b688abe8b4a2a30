package service

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/ippclub/nxsync/internal/model"
	"github.com/ippclub/nxsync/internal/store"
	"github.com/ippclub/nxsync/pkg/units"
	"go.uber.org/zap"
)

// HeadReader reports the current commit of a repository
type HeadReader interface {
	HeadHash() (string, error)
}

// BaseGameSync rebuilds the games table from the title repository
type BaseGameSync struct {
	store     *store.SQLiteStore
	repo      HeadReader
	root      string
	batchSize int
	logger    *zap.Logger
}

// BaseGameResult is the outcome of BaseGameSync.Sync
type BaseGameResult struct {
	Hash    string // HEAD of the title repository
	Skipped bool
	Games   int
}

// NewBaseGameSync creates a new BaseGameSync for the title repository at root
func NewBaseGameSync(st *store.SQLiteStore, repo HeadReader, root string, batchSize int, logger *zap.Logger) *BaseGameSync {
	return &BaseGameSync{
		store:     st,
		repo:      repo,
		root:      root,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Sync upserts a row for every title in src unless the title repository is
// still at lastHash. force ignores lastHash.
func (b *BaseGameSync) Sync(ctx context.Context, src *Sources, lastHash string, force bool) (*BaseGameResult, error) {
	head, err := b.repo.HeadHash()
	if err != nil {
		return nil, err
	}
	if head == lastHash && !force {
		b.logger.Info("title repository unchanged, skipping base games", zap.String("hash", head))
		return &BaseGameResult{Hash: head, Skipped: true}, nil
	}

	ids := src.TitleIDs()
	games := make([]*model.DBGame, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		games = append(games, b.buildGame(id, src))
	}

	if err := b.store.UpsertGames(ctx, games, b.batchSize); err != nil {
		return nil, err
	}

	b.logger.Info("base games synced", zap.String("hash", head), zap.Int("games", len(games)))
	return &BaseGameResult{Hash: head, Games: len(games)}, nil
}

func (b *BaseGameSync) buildGame(id string, src *Sources) *model.DBGame {
	game := &model.DBGame{
		ID:          id,
		GroupID:     src.GroupOf(id),
		Names:       src.Titles[id],
		Screenshots: []string{},
	}
	if game.Names == nil {
		game.Names = []string{}
	}

	var detail model.TitleDetail
	path := filepath.Join(b.root, "output", "titleid", id+".json")
	if err := readJSON(path, &detail); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			b.logger.Warn("unreadable title detail, using names only", zap.String("path", path), zap.Error(err))
		}
		return game
	}

	game.Publisher = nullString(detail.Publisher)
	game.IconURL = nullString(detail.IconURL)
	game.BannerURL = nullString(detail.BannerURL)
	if detail.ReleaseDate > 0 {
		game.ReleaseDate = sql.NullInt64{Int64: int64(detail.ReleaseDate), Valid: true}
	}
	if size, ok := units.ParseSize(detail.Size); ok {
		game.SizeInBytes = sql.NullInt64{Int64: size, Valid: true}
	}
	if detail.Screenshots != nil {
		game.Screenshots = detail.Screenshots
	}
	return game
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
