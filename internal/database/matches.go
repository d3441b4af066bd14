// internal/database/matches.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/codearena/internal/models"
	"github.com/jason-s-yu/codearena/internal/rating"
)

// Schema creates the match history tables if they are missing.
const Schema = `
CREATE TABLE IF NOT EXISTS matches (
	id            UUID PRIMARY KEY,
	room_id       UUID NOT NULL,
	challenge_id  TEXT NOT NULL,
	player1_id    TEXT NOT NULL,
	player2_id    TEXT NOT NULL,
	player1_score INTEGER NOT NULL,
	player2_score INTEGER NOT NULL,
	winner_id     TEXT,
	finished_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rating_changes (
	match_id   UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	old_rating INTEGER NOT NULL,
	new_rating INTEGER NOT NULL,
	delta      INTEGER NOT NULL,
	PRIMARY KEY (match_id, user_id)
);
`

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// MatchStore persists finished matches.
type MatchStore struct {
	db TxBeginner
}

func NewMatchStore(db TxBeginner) *MatchStore {
	return &MatchStore{db: db}
}

// EnsureSchema applies Schema.
func (s *MatchStore) EnsureSchema(ctx context.Context) error {
	return pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, Schema)
		return err
	})
}

// InsertMatchRecords writes a batch in one transaction. Records already stored
// (same match id) are skipped, so a redelivered batch is harmless.
func (s *MatchStore) InsertMatchRecords(ctx context.Context, recs []models.MatchRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertMatchTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("match %s: %w", rec.MatchID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert %d match records: %w", len(recs), err)
	}
	return nil
}

func insertMatchTx(ctx context.Context, tx pgx.Tx, rec models.MatchRecord) error {
	var winner *string
	if rec.WinnerID != "" {
		winner = &rec.WinnerID
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO matches (
			id, room_id, challenge_id, player1_id, player2_id,
			player1_score, player2_score, winner_id, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`,
		rec.MatchID, rec.RoomID, rec.ChallengeID, rec.Player1ID, rec.Player2ID,
		rec.Player1Score, rec.Player2Score, winner, rec.FinishedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	for userID, delta := range rec.Deltas {
		old := rec.Ratings[userID]
		if _, err := tx.Exec(ctx, `
			INSERT INTO rating_changes (match_id, user_id, old_rating, new_rating, delta)
			VALUES ($1, $2, $3, $4, $5)
		`, rec.MatchID, userID, old, rating.Apply(old, delta), delta); err != nil {
			return err
		}
	}
	return nil
}
