package queries

import (
	"context"
	"database/sql"
)

type Match struct {
	ID              string
	Title           sql.NullString
	Description     sql.NullString
	MatchDate       sql.NullString
	MatchTime       sql.NullString
	Location        sql.NullString
	LocationLat     sql.NullFloat64
	LocationLng     sql.NullFloat64
	MaxPlayers      sql.NullInt64
	PricePerPlayer  sql.NullFloat64
	CurrentPlayers  int64
	CreatorID       sql.NullString
	CreatorNickname sql.NullString
	CreatedAt       string
}

const matchColumns = `id, title, description, match_date, match_time, location,
	location_lat, location_lng, max_players, price_per_player, current_players,
	creator_id, creator_nickname, created_at`

func scanMatch(row interface{ Scan(...any) error }) (Match, error) {
	var m Match
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.MatchDate, &m.MatchTime,
		&m.Location, &m.LocationLat, &m.LocationLng, &m.MaxPlayers,
		&m.PricePerPlayer, &m.CurrentPlayers, &m.CreatorID,
		&m.CreatorNickname, &m.CreatedAt,
	)
	return m, err
}

type CreateMatchParams struct {
	Title           sql.NullString
	Description     sql.NullString
	MatchDate       sql.NullString
	MatchTime       sql.NullString
	Location        sql.NullString
	LocationLat     sql.NullFloat64
	LocationLng     sql.NullFloat64
	MaxPlayers      sql.NullInt64
	PricePerPlayer  sql.NullFloat64
	CreatorID       sql.NullString
	CreatorNickname sql.NullString
}

func (q *Queries) CreateMatch(ctx context.Context, arg CreateMatchParams) (Match, error) {
	id := newID()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO matches (id, title, description, match_date, match_time,
			location, location_lat, location_lng, max_players, price_per_player,
			current_players, creator_id, creator_nickname, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		id, arg.Title, arg.Description, arg.MatchDate, arg.MatchTime,
		arg.Location, arg.LocationLat, arg.LocationLng, arg.MaxPlayers,
		arg.PricePerPlayer, arg.CreatorID, arg.CreatorNickname, nowStamp(),
	)
	if err != nil {
		return Match{}, err
	}
	return q.GetMatch(ctx, id)
}

func (q *Queries) GetMatch(ctx context.Context, id string) (Match, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	return scanMatch(row)
}

func (q *Queries) ListMatches(ctx context.Context) ([]Match, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches ORDER BY match_date ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *Queries) ListMatchesByCreator(ctx context.Context, creatorID string) ([]Match, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE creator_id = ? ORDER BY created_at DESC`,
		creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteMatch(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type SetMatchPlayerCountParams struct {
	ID             string
	CurrentPlayers int64
}

// SetMatchPlayerCount writes an absolute value to the denormalized counter.
func (q *Queries) SetMatchPlayerCount(ctx context.Context, arg SetMatchPlayerCountParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE matches SET current_players = ? WHERE id = ?`,
		arg.CurrentPlayers, arg.ID)
	return err
}

// IncrementMatchPlayerCount bumps the counter by one. The legacy direct-join
// flow uses this instead of recounting rows.
func (q *Queries) IncrementMatchPlayerCount(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE matches SET current_players = current_players + 1 WHERE id = ?`, id)
	return err
}

func (q *Queries) CountMatchesByCreatorName(ctx context.Context, nickname string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM matches WHERE creator_nickname = ?`, nickname).Scan(&n)
	return n, err
}
