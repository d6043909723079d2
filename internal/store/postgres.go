package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kiliankoe/memebattles/internal/game"
)

// lobbyRow is one lobby document. Players and settings are stored as JSON.
type lobbyRow struct {
	Code       string        `gorm:"primaryKey;size:5"`
	HostID     string        `gorm:"size:64"`
	Status     string        `gorm:"size:16;not null;default:'waiting'"`
	MaxPlayers int           `gorm:"not null"`
	Players    []game.Player `gorm:"type:jsonb;serializer:json"`
	Settings   game.Settings `gorm:"type:jsonb;serializer:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time `gorm:"index"`
}

func (lobbyRow) TableName() string { return "lobbies" }

func toRow(l game.Lobby) lobbyRow {
	return lobbyRow{
		Code:       l.Code,
		HostID:     l.HostID,
		Status:     string(l.Status),
		MaxPlayers: l.MaxPlayers,
		Players:    append([]game.Player{}, l.Players...),
		Settings:   l.Settings,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func (r lobbyRow) lobby() game.Lobby {
	players := r.Players
	if players == nil {
		players = []game.Player{}
	}
	return game.Lobby{
		Code:       r.Code,
		HostID:     r.HostID,
		Status:     game.LobbyStatus(r.Status),
		MaxPlayers: r.MaxPlayers,
		Players:    players,
		Settings:   r.Settings,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// gormWriter routes gorm's logger into zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

// PostgresStore keeps one row per lobby in postgres.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the lobbies table.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	gl := logger.New(gormWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gl, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(&lobbyRow{}); err != nil {
		return nil, fmt.Errorf("migrate lobbies: %w", err)
	}
	log.Info().Msg("lobby database ready")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) Create(ctx context.Context, l game.Lobby) error {
	row := toRow(l)
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return game.ErrCodeTaken
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, code string) (game.Lobby, error) {
	var row lobbyRow
	if err := s.db.WithContext(ctx).First(&row, "code = ?", code).Error; err != nil {
		return game.Lobby{}, notFound(err)
	}
	return row.lobby(), nil
}

func (s *PostgresStore) Update(ctx context.Context, code string, patch game.LobbyPatch) error {
	return s.modify(ctx, code, func(l *game.Lobby) { game.ApplyPatch(l, patch) })
}

func (s *PostgresStore) AddPlayer(ctx context.Context, code string, p game.Player) error {
	return s.modify(ctx, code, func(l *game.Lobby) { l.Players = game.UnionPlayer(l.Players, p) })
}

// modify applies fn to the locked row inside one transaction.
func (s *PostgresStore) modify(ctx context.Context, code string, fn func(*game.Lobby)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row lobbyRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "code = ?", code).Error; err != nil {
			return notFound(err)
		}
		l := row.lobby()
		fn(&l)
		l.UpdatedAt = now()
		updated := toRow(l)
		return tx.Save(&updated).Error
	})
}

func (s *PostgresStore) Delete(ctx context.Context, code string) error {
	res := s.db.WithContext(ctx).Delete(&lobbyRow{}, "code = ?", code)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return game.ErrLobbyNotFound
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&lobbyRow{}).Where("code = ?", code).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// PruneStale deletes lobbies not touched since cutoff, e.g. left over from a crash.
func (s *PostgresStore) PruneStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&lobbyRow{})
	return res.RowsAffected, res.Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.ErrLobbyNotFound
	}
	return err
}

func now() time.Time { return time.Now().UTC() }
