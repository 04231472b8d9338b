package queries

import (
	"context"
	"database/sql"
)

type MatchRequest struct {
	ID              string
	MatchID         string
	ParticipantName string
	Team            sql.NullString
	Position        sql.NullString
	Status          string
	CreatedAt       string
}

const requestColumns = `id, match_id, participant_name, team, position, status, created_at`

func scanRequest(row interface{ Scan(...any) error }) (MatchRequest, error) {
	var r MatchRequest
	err := row.Scan(&r.ID, &r.MatchID, &r.ParticipantName, &r.Team, &r.Position, &r.Status, &r.CreatedAt)
	return r, err
}

type CreateRequestParams struct {
	MatchID         string
	ParticipantName string
	Team            sql.NullString
	Position        sql.NullString
}

func (q *Queries) CreateRequest(ctx context.Context, arg CreateRequestParams) (MatchRequest, error) {
	id := newID()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO match_requests (id, match_id, participant_name, team, position, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?)`,
		id, arg.MatchID, arg.ParticipantName, arg.Team, arg.Position, nowStamp(),
	)
	if err != nil {
		return MatchRequest{}, err
	}
	return q.GetRequest(ctx, id)
}

func (q *Queries) GetRequest(ctx context.Context, id string) (MatchRequest, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM match_requests WHERE id = ?`, id)
	return scanRequest(row)
}

type UpdateRequestStatusParams struct {
	ID     string
	Status string
}

func (q *Queries) UpdateRequestStatus(ctx context.Context, arg UpdateRequestStatusParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE match_requests SET status = ? WHERE id = ?`, arg.Status, arg.ID)
	return err
}

type CountPendingRequestParams struct {
	MatchID         string
	ParticipantName string
}

// CountPendingRequest backs the advisory "request already sent" check.
// Concurrent submissions can both observe zero before either insert lands;
// the original system accepts that race.
func (q *Queries) CountPendingRequest(ctx context.Context, arg CountPendingRequestParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM match_requests
		WHERE match_id = ? AND participant_name = ? AND status = 'pending'`,
		arg.MatchID, arg.ParticipantName).Scan(&n)
	return n, err
}

type PendingRequestRow struct {
	MatchRequest
	MatchTitle sql.NullString
}

// ListPendingRequestsByCreator returns pending requests for every match the
// creator owns, newest first, with the match title joined in.
func (q *Queries) ListPendingRequestsByCreator(ctx context.Context, creatorID string) ([]PendingRequestRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT r.id, r.match_id, r.participant_name, r.team, r.position, r.status, r.created_at, m.title
		FROM match_requests r
		JOIN matches m ON m.id = r.match_id
		WHERE m.creator_id = ? AND r.status = 'pending'
		ORDER BY r.created_at DESC`,
		creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingRequestRow
	for rows.Next() {
		var r PendingRequestRow
		if err := rows.Scan(&r.ID, &r.MatchID, &r.ParticipantName, &r.Team,
			&r.Position, &r.Status, &r.CreatedAt, &r.MatchTitle); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
