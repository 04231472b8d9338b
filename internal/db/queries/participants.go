package queries

import (
	"context"
	"database/sql"
)

type Participant struct {
	ID              string
	MatchID         string
	ParticipantName string
	Team            sql.NullString
	Position        sql.NullString
	CreatedAt       string
}

const participantColumns = `id, match_id, participant_name, team, position, created_at`

func scanParticipant(row interface{ Scan(...any) error }) (Participant, error) {
	var p Participant
	err := row.Scan(&p.ID, &p.MatchID, &p.ParticipantName, &p.Team, &p.Position, &p.CreatedAt)
	return p, err
}

type CreateParticipantParams struct {
	MatchID         string
	ParticipantName string
	Team            sql.NullString
	Position        sql.NullString
}

func (q *Queries) CreateParticipant(ctx context.Context, arg CreateParticipantParams) (Participant, error) {
	id := newID()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO match_participants (id, match_id, participant_name, team, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, arg.MatchID, arg.ParticipantName, arg.Team, arg.Position, nowStamp(),
	)
	if err != nil {
		return Participant{}, err
	}
	row := q.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM match_participants WHERE id = ?`, id)
	return scanParticipant(row)
}

func (q *Queries) ListParticipants(ctx context.Context) ([]Participant, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM match_participants ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func (q *Queries) ListParticipantsByMatch(ctx context.Context, matchID string) ([]Participant, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM match_participants WHERE match_id = ? ORDER BY created_at ASC`,
		matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

type ListParticipantsByMatchAndTeamParams struct {
	MatchID string
	Team    string
}

func (q *Queries) ListParticipantsByMatchAndTeam(ctx context.Context, arg ListParticipantsByMatchAndTeamParams) ([]Participant, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM match_participants WHERE match_id = ? AND team = ?`,
		arg.MatchID, arg.Team)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func (q *Queries) ListParticipantsByName(ctx context.Context, name string) ([]Participant, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM match_participants WHERE participant_name = ? ORDER BY created_at ASC`,
		name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectParticipants(rows)
}

func (q *Queries) CountParticipantsByMatch(ctx context.Context, matchID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_participants WHERE match_id = ?`, matchID).Scan(&n)
	return n, err
}

type CountParticipantByNameParams struct {
	MatchID         string
	ParticipantName string
}

// CountParticipantByName backs the advisory existence check before inserting
// a participant row. There is no unique constraint behind it.
func (q *Queries) CountParticipantByName(ctx context.Context, arg CountParticipantByNameParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_participants WHERE match_id = ? AND participant_name = ?`,
		arg.MatchID, arg.ParticipantName).Scan(&n)
	return n, err
}

func collectParticipants(rows *sql.Rows) ([]Participant, error) {
	var out []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
