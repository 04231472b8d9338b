package queries

import (
	"context"
	"database/sql"
)

type Profile struct {
	ID        string
	Username  string
	AvatarURL sql.NullString
	Position  sql.NullString
	Phone     sql.NullString
	Stars     int64
	CreatedAt string
	UpdatedAt string
}

const profileColumns = `id, username, avatar_url, position, phone, stars, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Username, &p.AvatarURL, &p.Position, &p.Phone,
		&p.Stars, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) GetProfile(ctx context.Context, id string) (Profile, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	return scanProfile(row)
}

func (q *Queries) GetProfileByUsername(ctx context.Context, username string) (Profile, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE username = ? LIMIT 1`, username)
	return scanProfile(row)
}

type UpsertProfileParams struct {
	ID        string
	Username  string
	AvatarURL sql.NullString
	Position  sql.NullString
	Phone     sql.NullString
}

func (q *Queries) UpsertProfile(ctx context.Context, arg UpsertProfileParams) (Profile, error) {
	now := nowStamp()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO profiles (id, username, avatar_url, position, phone, stars, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			avatar_url = excluded.avatar_url,
			position = excluded.position,
			phone = excluded.phone,
			updated_at = excluded.updated_at`,
		arg.ID, arg.Username, arg.AvatarURL, arg.Position, arg.Phone, now, now,
	)
	if err != nil {
		return Profile{}, err
	}
	return q.GetProfile(ctx, arg.ID)
}

type SetProfileStarsParams struct {
	ID    string
	Stars int64
}

// SetProfileStars writes an absolute star count. Star awards read the
// current value first and write back value+1; each player's update is
// independent of the others.
func (q *Queries) SetProfileStars(ctx context.Context, arg SetProfileStarsParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE profiles SET stars = ?, updated_at = ? WHERE id = ?`,
		arg.Stars, nowStamp(), arg.ID)
	return err
}

// ListProfilesByStars returns all profiles ordered for the leaderboard.
func (q *Queries) ListProfilesByStars(ctx context.Context) ([]Profile, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY stars DESC, username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
