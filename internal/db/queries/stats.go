package queries

import (
	"context"
	"database/sql"
)

type PlayerStatistic struct {
	ID               string
	UserID           sql.NullString
	Username         string
	TotalMatches     int64
	MatchesOrganized int64
	MatchesPlayed    int64
	TotalStarsEarned int64
	FavoritePosition sql.NullString
	WinRate          float64
	LastMatchDate    sql.NullString
	UpdatedAt        string
}

type UpsertPlayerStatisticsParams struct {
	UserID           sql.NullString
	Username         string
	TotalMatches     int64
	MatchesOrganized int64
	MatchesPlayed    int64
	TotalStarsEarned int64
	FavoritePosition sql.NullString
	WinRate          float64
	LastMatchDate    sql.NullString
}

func (q *Queries) UpsertPlayerStatistics(ctx context.Context, arg UpsertPlayerStatisticsParams) (PlayerStatistic, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO player_statistics (id, user_id, username, total_matches,
			matches_organized, matches_played, total_stars_earned,
			favorite_position, win_rate, last_match_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			user_id = excluded.user_id,
			total_matches = excluded.total_matches,
			matches_organized = excluded.matches_organized,
			matches_played = excluded.matches_played,
			total_stars_earned = excluded.total_stars_earned,
			favorite_position = excluded.favorite_position,
			win_rate = excluded.win_rate,
			last_match_date = excluded.last_match_date,
			updated_at = excluded.updated_at`,
		newID(), arg.UserID, arg.Username, arg.TotalMatches, arg.MatchesOrganized,
		arg.MatchesPlayed, arg.TotalStarsEarned, arg.FavoritePosition,
		arg.WinRate, arg.LastMatchDate, nowStamp(),
	)
	if err != nil {
		return PlayerStatistic{}, err
	}
	return q.GetPlayerStatistics(ctx, arg.Username)
}

func (q *Queries) GetPlayerStatistics(ctx context.Context, username string) (PlayerStatistic, error) {
	var s PlayerStatistic
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, total_matches, matches_organized,
			matches_played, total_stars_earned, favorite_position, win_rate,
			last_match_date, updated_at
		FROM player_statistics WHERE username = ?`, username).
		Scan(&s.ID, &s.UserID, &s.Username, &s.TotalMatches, &s.MatchesOrganized,
			&s.MatchesPlayed, &s.TotalStarsEarned, &s.FavoritePosition,
			&s.WinRate, &s.LastMatchDate, &s.UpdatedAt)
	return s, err
}

// ListStatisticsUsernames returns every username with a statistics snapshot,
// for the nightly refresh job.
func (q *Queries) ListStatisticsUsernames(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT username FROM player_statistics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type PlayerAchievement struct {
	ID                     string
	UserID                 sql.NullString
	Username               string
	AchievementType        string
	AchievementName        string
	AchievementDescription string
	EarnedAt               string
}

type CreateAchievementParams struct {
	UserID                 sql.NullString
	Username               string
	AchievementType        string
	AchievementName        string
	AchievementDescription string
}

// CreateAchievement awards once per (username, type); a repeat award is a
// no-op and reports zero rows.
func (q *Queries) CreateAchievement(ctx context.Context, arg CreateAchievementParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO player_achievements (id, user_id, username, achievement_type,
			achievement_name, achievement_description, earned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, achievement_type) DO NOTHING`,
		newID(), arg.UserID, arg.Username, arg.AchievementType,
		arg.AchievementName, arg.AchievementDescription, nowStamp(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) ListAchievementsByUsername(ctx context.Context, username string) ([]PlayerAchievement, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, username, achievement_type, achievement_name,
			achievement_description, earned_at
		FROM player_achievements WHERE username = ? ORDER BY earned_at ASC`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PlayerAchievement
	for rows.Next() {
		var a PlayerAchievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.Username, &a.AchievementType,
			&a.AchievementName, &a.AchievementDescription, &a.EarnedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
