package queries

import (
	"context"
	"database/sql"
)

type Comment struct {
	ID          string
	MatchID     string
	UserID      sql.NullString
	Username    string
	CommentText string
	CreatedAt   string
	UpdatedAt   string
}

const commentColumns = `id, match_id, user_id, username, comment_text, created_at, updated_at`

type CreateCommentParams struct {
	MatchID     string
	UserID      sql.NullString
	Username    string
	CommentText string
}

func (q *Queries) CreateComment(ctx context.Context, arg CreateCommentParams) (Comment, error) {
	id := newID()
	now := nowStamp()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO match_comments (id, match_id, user_id, username, comment_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, arg.MatchID, arg.UserID, arg.Username, arg.CommentText, now, now,
	)
	if err != nil {
		return Comment{}, err
	}
	return q.GetComment(ctx, id)
}

func (q *Queries) GetComment(ctx context.Context, id string) (Comment, error) {
	var c Comment
	err := q.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM match_comments WHERE id = ?`, id).
		Scan(&c.ID, &c.MatchID, &c.UserID, &c.Username, &c.CommentText, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (q *Queries) ListCommentsByMatch(ctx context.Context, matchID string) ([]Comment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM match_comments WHERE match_id = ? ORDER BY created_at ASC`,
		matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.MatchID, &c.UserID, &c.Username,
			&c.CommentText, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type UpdateCommentParams struct {
	ID          string
	CommentText string
}

func (q *Queries) UpdateComment(ctx context.Context, arg UpdateCommentParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE match_comments SET comment_text = ?, updated_at = ? WHERE id = ?`,
		arg.CommentText, nowStamp(), arg.ID)
	return err
}

func (q *Queries) DeleteComment(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM match_comments WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type Reaction struct {
	ID           string
	MatchID      string
	UserID       string
	Username     string
	ReactionType string
	CreatedAt    string
}

type UpsertReactionParams struct {
	MatchID      string
	UserID       string
	Username     string
	ReactionType string
}

// UpsertReaction keeps at most one reaction per (match, user); re-reacting
// replaces the previous type.
func (q *Queries) UpsertReaction(ctx context.Context, arg UpsertReactionParams) (Reaction, error) {
	id := newID()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO match_reactions (id, match_id, user_id, username, reaction_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id, user_id) DO UPDATE SET
			reaction_type = excluded.reaction_type,
			username = excluded.username`,
		id, arg.MatchID, arg.UserID, arg.Username, arg.ReactionType, nowStamp(),
	)
	if err != nil {
		return Reaction{}, err
	}

	var r Reaction
	err = q.db.QueryRowContext(ctx, `
		SELECT id, match_id, user_id, username, reaction_type, created_at
		FROM match_reactions WHERE match_id = ? AND user_id = ?`,
		arg.MatchID, arg.UserID).
		Scan(&r.ID, &r.MatchID, &r.UserID, &r.Username, &r.ReactionType, &r.CreatedAt)
	return r, err
}

func (q *Queries) ListReactionsByMatch(ctx context.Context, matchID string) ([]Reaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, match_id, user_id, username, reaction_type, created_at
		FROM match_reactions WHERE match_id = ? ORDER BY created_at ASC`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reaction
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.ID, &r.MatchID, &r.UserID, &r.Username,
			&r.ReactionType, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type DeleteReactionParams struct {
	MatchID string
	UserID  string
}

func (q *Queries) DeleteReaction(ctx context.Context, arg DeleteReactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM match_reactions WHERE match_id = ? AND user_id = ?`,
		arg.MatchID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type Activity struct {
	ID           string
	ActivityType string
	UserID       sql.NullString
	Username     string
	MatchID      sql.NullString
	Description  string
	Metadata     sql.NullString
	CreatedAt    string
}

type CreateActivityParams struct {
	ActivityType string
	UserID       sql.NullString
	Username     string
	MatchID      sql.NullString
	Description  string
	Metadata     sql.NullString
}

func (q *Queries) CreateActivity(ctx context.Context, arg CreateActivityParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO activities (id, activity_type, user_id, username, match_id, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		newID(), arg.ActivityType, arg.UserID, arg.Username, arg.MatchID,
		arg.Description, arg.Metadata, nowStamp(),
	)
	return err
}

func (q *Queries) ListActivities(ctx context.Context, limit int64) ([]Activity, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, activity_type, user_id, username, match_id, description, metadata, created_at
		FROM activities ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.ActivityType, &a.UserID, &a.Username,
			&a.MatchID, &a.Description, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
