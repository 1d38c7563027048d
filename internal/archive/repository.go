// Package archive stores finished matches in Postgres together with their PGN.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/park285/cheese-match-server/internal/match"
	"github.com/park285/cheese-match-server/internal/obslog"
	"go.uber.org/zap"
)

const schema = `CREATE TABLE IF NOT EXISTS match_results (
    game_id       TEXT PRIMARY KEY,
    room_id       TEXT NOT NULL,
    round         INTEGER NOT NULL,
    white_name    TEXT NOT NULL,
    black_name    TEXT NOT NULL,
    result        TEXT NOT NULL,
    result_method TEXT NOT NULL,
    moves_uci     JSONB NOT NULL,
    moves_san     JSONB NOT NULL,
    pgn           TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
)`

type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create match_results: %w", err)
	}
	return nil
}

// GameID is the archive key of one round in a room.
func GameID(g match.FinishedGame) string {
	return fmt.Sprintf("%s-%d", g.RoomID, g.Round)
}

// SaveResult upserts a finished round.
func (r *Repository) SaveResult(ctx context.Context, g match.FinishedGame) error {
	if r == nil || r.db == nil {
		return nil
	}
	san, err := SANMoves(g.MovesUCI)
	if err != nil {
		return err
	}
	movesUCIRaw, _ := json.Marshal(g.MovesUCI)
	movesSANRaw, _ := json.Marshal(san)
	duration := g.EndedAt.Sub(g.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO match_results (
        game_id, room_id, round, white_name, black_name,
        result, result_method, moves_uci, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
      ON CONFLICT (game_id) DO UPDATE SET
        white_name=EXCLUDED.white_name,
        black_name=EXCLUDED.black_name,
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		GameID(g), g.RoomID, g.Round, g.White, g.Black,
		g.Result, strings.TrimSpace(g.Method), string(movesUCIRaw), string(movesSANRaw), BuildPGN(g, san),
		g.StartedAt, g.EndedAt, duration,
	)
	if err != nil {
		obslog.L().Error("archive_save_error", zap.String("game_id", GameID(g)), zap.Error(err))
		return err
	}
	obslog.L().Info("archive_save", zap.String("game_id", GameID(g)), zap.String("result", g.Result), zap.String("method", g.Method))
	return nil
}
