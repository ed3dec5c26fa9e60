package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/internal/domain/target"
)

// SQLiteStore is the durable Store implementation backed by an embedded
// SQLite database. It is the write-behind target of the flush pipeline
// and the hydration source at startup.
type SQLiteStore struct {
	db *sql.DB
}

// timeLayout keeps full timestamp precision through the TEXT columns.
// The fraction is fixed-width so the stored text sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpenSQLite opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: serializes writers and keeps ":memory:"
	// databases from being split across pooled connections.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// createSchema creates all tables. Safe to call multiple times.
func (s *SQLiteStore) createSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    gender         TEXT NOT NULL DEFAULT '',
    personal_bests TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS rounds (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    date            TEXT NOT NULL,
    distance        INTEGER NOT NULL,
    distance_label  TEXT NOT NULL,
    arrows_per_end  INTEGER NOT NULL,
    total_ends      INTEGER NOT NULL,
    total_arrows    INTEGER NOT NULL,
    type            TEXT NOT NULL CHECK (type IN ('personal', 'club', 'competition')),
    comp_name       TEXT,
    comp_location   TEXT,
    comp_weather    TEXT,
    comp_condition  TEXT,
    status          TEXT NOT NULL CHECK (status IN ('in_progress', 'completed', 'cancelled')),
    total_score     INTEGER NOT NULL DEFAULT 0,
    total_x         INTEGER NOT NULL DEFAULT 0,
    total_10        INTEGER NOT NULL DEFAULT 0,
    total_shots     INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL,
    seq             INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_user_id ON rounds(user_id);
CREATE INDEX IF NOT EXISTS idx_rounds_status ON rounds(status);
CREATE INDEX IF NOT EXISTS idx_rounds_date ON rounds(date);

CREATE TABLE IF NOT EXISTS ends (
    id        TEXT PRIMARY KEY,
    round_id  TEXT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
    idx       INTEGER NOT NULL,
    end_total INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_ends_round_id ON ends(round_id);

CREATE TABLE IF NOT EXISTS shots (
    id          TEXT PRIMARY KEY,
    end_id      TEXT NOT NULL REFERENCES ends(id) ON DELETE CASCADE,
    round_id    TEXT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
    arrow_index INTEGER NOT NULL,
    score       TEXT NOT NULL,
    pos_x       REAL,
    pos_y       REAL,
    ts          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_shots_end_id ON shots(end_id);
CREATE INDEX IF NOT EXISTS idx_shots_round_id ON shots(round_id);
`

// PutUser inserts or replaces a user record.
func (s *SQLiteStore) PutUser(ctx context.Context, u model.User) error {
	bests, err := json.Marshal(u.PersonalBests)
	if err != nil {
		return fmt.Errorf("marshal personal bests: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, gender, personal_bests) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, gender = excluded.gender,
			personal_bests = excluded.personal_bests`,
		u.ID, u.Name, u.Gender, string(bests))
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// User returns a user by id.
func (s *SQLiteStore) User(ctx context.Context, id string) (model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, gender, personal_bests FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// Users returns all users ordered by id.
func (s *SQLiteStore) Users(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, gender, personal_bests FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateRound stores a new round aggregate in one transaction.
func (s *SQLiteStore) CreateRound(ctx context.Context, tree model.RoundTree) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		seq := tree.Round.Seq
		if seq == 0 {
			row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM rounds`)
			if err := row.Scan(&seq); err != nil {
				return fmt.Errorf("next seq: %w", err)
			}
		}
		round := tree.Round
		round.Seq = seq
		if err := insertRound(ctx, tx, &round); err != nil {
			return err
		}
		return insertChildren(ctx, tx, &tree)
	})
}

// Round returns the round header by id.
func (s *SQLiteStore) Round(ctx context.Context, id string) (model.Round, error) {
	row := s.db.QueryRowContext(ctx, selectRound+` WHERE id = ?`, id)
	r, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Round{}, ErrRoundNotFound
	}
	return r, err
}

// RoundTree returns the full aggregate for a round.
func (s *SQLiteStore) RoundTree(ctx context.Context, roundID string) (model.RoundTree, error) {
	round, err := s.Round(ctx, roundID)
	if err != nil {
		return model.RoundTree{}, err
	}

	ends, err := s.EndsForRound(ctx, roundID)
	if err != nil {
		return model.RoundTree{}, err
	}
	shots, err := s.shotsForRound(ctx, roundID)
	if err != nil {
		return model.RoundTree{}, err
	}
	return model.RoundTree{Round: round, Ends: ends, Shots: shots}, nil
}

// ReplaceRoundTree swaps a round aggregate atomically: the round row is
// rewritten and all children are reinserted inside one transaction.
func (s *SQLiteStore) ReplaceRoundTree(ctx context.Context, tree model.RoundTree) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var seq uint64
		row := tx.QueryRowContext(ctx, `SELECT seq FROM rounds WHERE id = ?`, tree.Round.ID)
		if err := row.Scan(&seq); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRoundNotFound
			}
			return fmt.Errorf("lookup round: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM shots WHERE round_id = ?`, tree.Round.ID); err != nil {
			return fmt.Errorf("clear shots: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ends WHERE round_id = ?`, tree.Round.ID); err != nil {
			return fmt.Errorf("clear ends: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE id = ?`, tree.Round.ID); err != nil {
			return fmt.Errorf("clear round: %w", err)
		}

		round := tree.Round
		round.Seq = seq
		if err := insertRound(ctx, tx, &round); err != nil {
			return err
		}
		return insertChildren(ctx, tx, &tree)
	})
}

// DeleteRound removes a round and cascades over ends and shots in one
// transaction, so a partial cascade is never observable.
func (s *SQLiteStore) DeleteRound(ctx context.Context, roundID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM shots WHERE round_id = ?`, roundID); err != nil {
			return fmt.Errorf("delete shots: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ends WHERE round_id = ?`, roundID); err != nil {
			return fmt.Errorf("delete ends: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE id = ?`, roundID)
		if err != nil {
			return fmt.Errorf("delete round: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrRoundNotFound
		}
		return nil
	})
}

// RoundIDForEnd resolves the round owning an end.
func (s *SQLiteStore) RoundIDForEnd(ctx context.Context, endID string) (string, error) {
	var roundID string
	err := s.db.QueryRowContext(ctx, `SELECT round_id FROM ends WHERE id = ?`, endID).Scan(&roundID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrEndNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup end: %w", err)
	}
	return roundID, nil
}

// RoundIDForShot resolves the round owning a shot.
func (s *SQLiteStore) RoundIDForShot(ctx context.Context, shotID string) (string, error) {
	var roundID string
	err := s.db.QueryRowContext(ctx, `SELECT round_id FROM shots WHERE id = ?`, shotID).Scan(&roundID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrShotNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup shot: %w", err)
	}
	return roundID, nil
}

// RoundsForUser returns all rounds owned by a user, newest first.
func (s *SQLiteStore) RoundsForUser(ctx context.Context, userID string) ([]model.Round, error) {
	return s.queryRounds(ctx, selectRound+` WHERE user_id = ? ORDER BY date DESC, seq DESC`, userID)
}

// CompletedRounds returns every completed round, newest first.
func (s *SQLiteStore) CompletedRounds(ctx context.Context) ([]model.Round, error) {
	return s.queryRounds(ctx, selectRound+` WHERE status = 'completed' ORDER BY date DESC, seq DESC`)
}

// EndsForRound returns the ends of a round ordered by end index.
func (s *SQLiteStore) EndsForRound(ctx context.Context, roundID string) ([]model.End, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, round_id, idx, end_total FROM ends WHERE round_id = ? ORDER BY idx`, roundID)
	if err != nil {
		return nil, fmt.Errorf("query ends: %w", err)
	}
	defer rows.Close()

	var out []model.End
	for rows.Next() {
		var e model.End
		if err := rows.Scan(&e.ID, &e.RoundID, &e.Index, &e.EndTotal); err != nil {
			return nil, fmt.Errorf("scan end: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ShotsForEnd returns the shots of an end ordered by arrow index.
func (s *SQLiteStore) ShotsForEnd(ctx context.Context, endID string) ([]model.Shot, error) {
	rows, err := s.db.QueryContext(ctx, selectShot+` WHERE end_id = ? ORDER BY arrow_index`, endID)
	if err != nil {
		return nil, fmt.Errorf("query shots: %w", err)
	}
	defer rows.Close()
	return collectShots(rows)
}

func (s *SQLiteStore) shotsForRound(ctx context.Context, roundID string) ([]model.Shot, error) {
	rows, err := s.db.QueryContext(ctx, selectShot+` WHERE round_id = ? ORDER BY arrow_index`, roundID)
	if err != nil {
		return nil, fmt.Errorf("query shots: %w", err)
	}
	defer rows.Close()
	return collectShots(rows)
}

// AllRoundTrees exports every aggregate ordered by insertion sequence.
func (s *SQLiteStore) AllRoundTrees(ctx context.Context) ([]model.RoundTree, error) {
	rounds, err := s.queryRounds(ctx, selectRound+` ORDER BY seq`)
	if err != nil {
		return nil, err
	}

	out := make([]model.RoundTree, 0, len(rounds))
	for i := range rounds {
		ends, err := s.EndsForRound(ctx, rounds[i].ID)
		if err != nil {
			return nil, err
		}
		shots, err := s.shotsForRound(ctx, rounds[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.RoundTree{Round: rounds[i], Ends: ends, Shots: shots})
	}
	return out, nil
}

// CountRounds returns the number of stored rounds.
func (s *SQLiteStore) CountRounds(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// CountUsers returns the number of stored users.
func (s *SQLiteStore) CountUsers(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// inTx runs fn inside a transaction with rollback on error.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const selectRound = `
	SELECT id, user_id, date, distance, distance_label, arrows_per_end, total_ends,
		total_arrows, type, comp_name, comp_location, comp_weather, comp_condition,
		status, total_score, total_x, total_10, total_shots, created_at, seq
	FROM rounds`

const selectShot = `
	SELECT id, end_id, arrow_index, score, pos_x, pos_y, ts FROM shots`

func insertRound(ctx context.Context, tx *sql.Tx, r *model.Round) error {
	var name, location, weather, condition sql.NullString
	if r.Competition != nil {
		name = sql.NullString{String: r.Competition.Name, Valid: true}
		location = sql.NullString{String: r.Competition.Location, Valid: true}
		weather = sql.NullString{String: r.Competition.Weather, Valid: true}
		condition = sql.NullString{String: r.Competition.Condition, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO rounds (id, user_id, date, distance, distance_label, arrows_per_end,
			total_ends, total_arrows, type, comp_name, comp_location, comp_weather,
			comp_condition, status, total_score, total_x, total_10, total_shots,
			created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Date.UTC().Format(timeLayout), r.Distance, r.DistanceLabel,
		r.ArrowsPerEnd, r.TotalEnds, r.TotalArrows, string(r.Type),
		name, location, weather, condition, string(r.Status),
		r.TotalScore, r.TotalX, r.Total10, r.TotalShots,
		r.CreatedAt.UTC().Format(timeLayout), r.Seq)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

func insertChildren(ctx context.Context, tx *sql.Tx, tree *model.RoundTree) error {
	for i := range tree.Ends {
		e := &tree.Ends[i]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ends (id, round_id, idx, end_total) VALUES (?, ?, ?, ?)`,
			e.ID, tree.Round.ID, e.Index, e.EndTotal); err != nil {
			return fmt.Errorf("insert end: %w", err)
		}
	}
	for i := range tree.Shots {
		sh := &tree.Shots[i]
		var posX, posY sql.NullFloat64
		if sh.Position != nil {
			posX = sql.NullFloat64{Float64: sh.Position.X, Valid: true}
			posY = sql.NullFloat64{Float64: sh.Position.Y, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shots (id, end_id, round_id, arrow_index, score, pos_x, pos_y, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sh.ID, sh.EndID, tree.Round.ID, sh.ArrowIndex, string(sh.Score),
			posX, posY, sh.Timestamp.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("insert shot: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var bests string
	if err := row.Scan(&u.ID, &u.Name, &u.Gender, &bests); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	if bests != "" && bests != "null" {
		if err := json.Unmarshal([]byte(bests), &u.PersonalBests); err != nil {
			return model.User{}, fmt.Errorf("unmarshal personal bests: %w", err)
		}
	}
	return u, nil
}

func scanRound(row rowScanner) (model.Round, error) {
	var r model.Round
	var date, createdAt, roundType, status string
	var name, location, weather, condition sql.NullString

	err := row.Scan(&r.ID, &r.UserID, &date, &r.Distance, &r.DistanceLabel,
		&r.ArrowsPerEnd, &r.TotalEnds, &r.TotalArrows, &roundType,
		&name, &location, &weather, &condition, &status,
		&r.TotalScore, &r.TotalX, &r.Total10, &r.TotalShots, &createdAt, &r.Seq)
	if err != nil {
		return model.Round{}, err
	}

	r.Type = model.RoundType(roundType)
	r.Status = model.RoundStatus(status)
	if r.Date, err = time.Parse(timeLayout, date); err != nil {
		return model.Round{}, fmt.Errorf("parse round date: %w", err)
	}
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return model.Round{}, fmt.Errorf("parse round created_at: %w", err)
	}
	if name.Valid {
		r.Competition = &model.CompetitionInfo{
			Name:      name.String,
			Location:  location.String,
			Weather:   weather.String,
			Condition: condition.String,
		}
	}
	return r, nil
}

func (s *SQLiteStore) queryRounds(ctx context.Context, query string, args ...any) ([]model.Round, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []model.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	// Ordering comes from the caller's ORDER BY; RFC3339 UTC text sorts
	// lexicographically in chronological order.
	return out, rows.Err()
}

func collectShots(rows *sql.Rows) ([]model.Shot, error) {
	var out []model.Shot
	for rows.Next() {
		var sh model.Shot
		var score, ts string
		var posX, posY sql.NullFloat64
		if err := rows.Scan(&sh.ID, &sh.EndID, &sh.ArrowIndex, &score, &posX, &posY, &ts); err != nil {
			return nil, fmt.Errorf("scan shot: %w", err)
		}
		sh.Score = target.Score(score)
		if posX.Valid && posY.Valid {
			sh.Position = &target.HitPosition{X: posX.Float64, Y: posY.Float64}
		}
		var err error
		if sh.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse shot timestamp: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}
