// Package models holds the API-facing shapes and their conversions from
// database rows.
package models

import (
	"database/sql"

	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
)

type Match struct {
	ID              string        `json:"id"`
	Title           *string       `json:"title"`
	Description     *string       `json:"description"`
	MatchDate       *string       `json:"matchDate"`
	MatchTime       *string       `json:"matchTime"`
	Location        *string       `json:"location"`
	LocationLat     *float64      `json:"locationLat"`
	LocationLng     *float64      `json:"locationLng"`
	MaxPlayers      *int64        `json:"maxPlayers"`
	PricePerPlayer  *float64      `json:"pricePerPlayer"`
	CurrentPlayers  int64         `json:"currentPlayers"`
	CreatorID       *string       `json:"creatorId,omitempty"`
	CreatorNickname *string       `json:"creatorNickname"`
	CreatedAt       string        `json:"createdAt"`
	Participants    []Participant `json:"participants"`
}

type Participant struct {
	ID              string  `json:"id"`
	MatchID         string  `json:"matchId"`
	ParticipantName string  `json:"participantName"`
	Team            *string `json:"team"`
	Position        *string `json:"position"`
	CreatedAt       string  `json:"createdAt"`
	// Stars carries the matching profile's rating when a profile with the
	// same username exists; nil for anonymous players.
	Stars *int64 `json:"stars,omitempty"`
}

type MatchRequest struct {
	ID              string  `json:"id"`
	MatchID         string  `json:"matchId"`
	ParticipantName string  `json:"participantName"`
	Team            *string `json:"team"`
	Position        *string `json:"position"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"createdAt"`
	MatchTitle      string  `json:"matchTitle,omitempty"`
}

type Profile struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
	Position  *string `json:"position"`
	Phone     *string `json:"phone"`
	Stars     int64   `json:"stars"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

type Comment struct {
	ID          string  `json:"id"`
	MatchID     string  `json:"matchId"`
	UserID      *string `json:"userId"`
	Username    string  `json:"username"`
	CommentText string  `json:"commentText"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

type Reaction struct {
	ID           string `json:"id"`
	MatchID      string `json:"matchId"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	ReactionType string `json:"reactionType"`
	CreatedAt    string `json:"createdAt"`
}

type Activity struct {
	ID           string  `json:"id"`
	ActivityType string  `json:"activityType"`
	UserID       *string `json:"userId"`
	Username     string  `json:"username"`
	MatchID      *string `json:"matchId"`
	Description  string  `json:"description"`
	Metadata     *string `json:"metadata"`
	CreatedAt    string  `json:"createdAt"`
}

type PlayerStatistics struct {
	ID               string  `json:"id"`
	UserID           *string `json:"userId"`
	Username         string  `json:"username"`
	TotalMatches     int64   `json:"totalMatches"`
	MatchesOrganized int64   `json:"matchesOrganized"`
	MatchesPlayed    int64   `json:"matchesPlayed"`
	TotalStarsEarned int64   `json:"totalStarsEarned"`
	FavoritePosition *string `json:"favoritePosition"`
	WinRate          float64 `json:"winRate"`
	LastMatchDate    *string `json:"lastMatchDate"`
	UpdatedAt        string  `json:"updatedAt"`
}

type Achievement struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Type        string `json:"achievementType"`
	Name        string `json:"achievementName"`
	Description string `json:"achievementDescription"`
	EarnedAt    string `json:"earnedAt"`
}

func MatchFromDB(row dbq.Match) Match {
	return Match{
		ID:              row.ID,
		Title:           nullString(row.Title),
		Description:     nullString(row.Description),
		MatchDate:       nullString(row.MatchDate),
		MatchTime:       nullString(row.MatchTime),
		Location:        nullString(row.Location),
		LocationLat:     nullFloat(row.LocationLat),
		LocationLng:     nullFloat(row.LocationLng),
		MaxPlayers:      nullInt(row.MaxPlayers),
		PricePerPlayer:  nullFloat(row.PricePerPlayer),
		CurrentPlayers:  row.CurrentPlayers,
		CreatorID:       nullString(row.CreatorID),
		CreatorNickname: nullString(row.CreatorNickname),
		CreatedAt:       row.CreatedAt,
		Participants:    []Participant{},
	}
}

func ParticipantFromDB(row dbq.Participant) Participant {
	return Participant{
		ID:              row.ID,
		MatchID:         row.MatchID,
		ParticipantName: row.ParticipantName,
		Team:            nullString(row.Team),
		Position:        nullString(row.Position),
		CreatedAt:       row.CreatedAt,
	}
}

func RequestFromDB(row dbq.MatchRequest) MatchRequest {
	return MatchRequest{
		ID:              row.ID,
		MatchID:         row.MatchID,
		ParticipantName: row.ParticipantName,
		Team:            nullString(row.Team),
		Position:        nullString(row.Position),
		Status:          row.Status,
		CreatedAt:       row.CreatedAt,
	}
}

func ProfileFromDB(row dbq.Profile) Profile {
	return Profile{
		ID:        row.ID,
		Username:  row.Username,
		AvatarURL: nullString(row.AvatarURL),
		Position:  nullString(row.Position),
		Phone:     nullString(row.Phone),
		Stars:     row.Stars,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func CommentFromDB(row dbq.Comment) Comment {
	return Comment{
		ID:          row.ID,
		MatchID:     row.MatchID,
		UserID:      nullString(row.UserID),
		Username:    row.Username,
		CommentText: row.CommentText,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func ReactionFromDB(row dbq.Reaction) Reaction {
	return Reaction{
		ID:           row.ID,
		MatchID:      row.MatchID,
		UserID:       row.UserID,
		Username:     row.Username,
		ReactionType: row.ReactionType,
		CreatedAt:    row.CreatedAt,
	}
}

func ActivityFromDB(row dbq.Activity) Activity {
	return Activity{
		ID:           row.ID,
		ActivityType: row.ActivityType,
		UserID:       nullString(row.UserID),
		Username:     row.Username,
		MatchID:      nullString(row.MatchID),
		Description:  row.Description,
		Metadata:     nullString(row.Metadata),
		CreatedAt:    row.CreatedAt,
	}
}

func StatisticsFromDB(row dbq.PlayerStatistic) PlayerStatistics {
	return PlayerStatistics{
		ID:               row.ID,
		UserID:           nullString(row.UserID),
		Username:         row.Username,
		TotalMatches:     row.TotalMatches,
		MatchesOrganized: row.MatchesOrganized,
		MatchesPlayed:    row.MatchesPlayed,
		TotalStarsEarned: row.TotalStarsEarned,
		FavoritePosition: nullString(row.FavoritePosition),
		WinRate:          row.WinRate,
		LastMatchDate:    nullString(row.LastMatchDate),
		UpdatedAt:        row.UpdatedAt,
	}
}

func AchievementFromDB(row dbq.PlayerAchievement) Achievement {
	return Achievement{
		ID:          row.ID,
		Username:    row.Username,
		Type:        row.AchievementType,
		Name:        row.AchievementName,
		Description: row.AchievementDescription,
		EarnedAt:    row.EarnedAt,
	}
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
