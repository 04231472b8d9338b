// Package stats computes player statistics snapshots and awards achievements.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oguzcanoz/halisaha/internal/api/apiutil"
	appdb "github.com/oguzcanoz/halisaha/internal/db"
	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/models"
	"github.com/oguzcanoz/halisaha/internal/realtime"
)

var (
	queries     *dbq.Queries
	queriesOnce sync.Once
	hub         *realtime.Hub
)

const statsQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB, h *realtime.Hub) {
	if database == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = database.Queries
		hub = h
	})
}

func publish(table, event, id string) {
	if hub != nil {
		hub.Publish(table, event, id)
	}
}

// achievementDef couples an achievement with the statistic threshold that
// earns it.
type achievementDef struct {
	Type        string
	Name        string
	Description string
	Earned      func(dbq.PlayerStatistic) bool
}

var achievementDefs = []achievementDef{
	{
		Type:        "first_match",
		Name:        "First Match",
		Description: "Played your first match",
		Earned:      func(s dbq.PlayerStatistic) bool { return s.MatchesPlayed >= 1 },
	},
	{
		Type:        "team_player",
		Name:        "Team Player",
		Description: "Played 5 matches",
		Earned:      func(s dbq.PlayerStatistic) bool { return s.MatchesPlayed >= 5 },
	},
	{
		Type:        "veteran",
		Name:        "Veteran",
		Description: "Played 10 matches",
		Earned:      func(s dbq.PlayerStatistic) bool { return s.MatchesPlayed >= 10 },
	},
	{
		Type:        "organizer",
		Name:        "Organizer",
		Description: "Organized your first match",
		Earned:      func(s dbq.PlayerStatistic) bool { return s.MatchesOrganized >= 1 },
	},
	{
		Type:        "star_player",
		Name:        "Star Player",
		Description: "Earned 5 stars",
		Earned:      func(s dbq.PlayerStatistic) bool { return s.TotalStarsEarned >= 5 },
	},
	{
		Type:        "all_star",
		Name:        "All Star",
		Description: "Earned 10 stars",
		Earned:      func(s dbq.PlayerStatistic) bool { return s.TotalStarsEarned >= 10 },
	},
}

// Refresh recomputes a player's statistics from the live tables and stores
// the snapshot.
func Refresh(ctx context.Context, username string) (dbq.PlayerStatistic, error) {
	parts, err := queries.ListParticipantsByName(ctx, username)
	if err != nil {
		return dbq.PlayerStatistic{}, err
	}

	organized, err := queries.CountMatchesByCreatorName(ctx, username)
	if err != nil {
		return dbq.PlayerStatistic{}, err
	}

	var userID sql.NullString
	var stars int64
	profile, err := queries.GetProfileByUsername(ctx, username)
	switch {
	case err == nil:
		userID = sql.NullString{String: profile.ID, Valid: true}
		stars = profile.Stars
	case errors.Is(err, sql.ErrNoRows):
		// Participation without a profile still counts.
	default:
		return dbq.PlayerStatistic{}, err
	}

	played := int64(len(parts))
	arg := dbq.UpsertPlayerStatisticsParams{
		UserID:           userID,
		Username:         username,
		TotalMatches:     played + organized,
		MatchesOrganized: organized,
		MatchesPlayed:    played,
		TotalStarsEarned: stars,
		FavoritePosition: favoritePosition(parts),
		LastMatchDate:    lastMatchDate(ctx, parts),
	}

	snapshot, err := queries.UpsertPlayerStatistics(ctx, arg)
	if err != nil {
		return dbq.PlayerStatistic{}, err
	}
	publish("player_statistics", realtime.EventUpdate, snapshot.ID)
	return snapshot, nil
}

// RefreshAll recomputes every stored statistics snapshot. Used by the
// nightly scheduler job.
func RefreshAll(ctx context.Context) error {
	usernames, err := queries.ListStatisticsUsernames(ctx)
	if err != nil {
		return err
	}
	for _, name := range usernames {
		if _, err := Refresh(ctx, name); err != nil {
			log.Error().Err(err).Str("username", name).Msg("Failed to refresh player statistics")
		}
	}
	return nil
}

// favoritePosition returns the position the player fills most often. Ties
// break alphabetically so repeated refreshes are stable.
func favoritePosition(parts []dbq.Participant) sql.NullString {
	counts := make(map[string]int)
	for _, p := range parts {
		if p.Position.Valid && p.Position.String != "" {
			counts[p.Position.String]++
		}
	}
	if len(counts) == 0 {
		return sql.NullString{}
	}
	positions := make([]string, 0, len(counts))
	for pos := range counts {
		positions = append(positions, pos)
	}
	sort.Strings(positions)
	best := positions[0]
	for _, pos := range positions[1:] {
		if counts[pos] > counts[best] {
			best = pos
		}
	}
	return sql.NullString{String: best, Valid: true}
}

// lastMatchDate finds the most recent match date among the player's
// participations. Dates are ISO strings, so lexicographic max is enough.
func lastMatchDate(ctx context.Context, parts []dbq.Participant) sql.NullString {
	seen := make(map[string]struct{}, len(parts))
	var latest string
	for _, p := range parts {
		if _, ok := seen[p.MatchID]; ok {
			continue
		}
		seen[p.MatchID] = struct{}{}
		m, err := queries.GetMatch(ctx, p.MatchID)
		if err != nil {
			continue
		}
		if m.MatchDate.Valid && m.MatchDate.String > latest {
			latest = m.MatchDate.String
		}
	}
	if latest == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: latest, Valid: true}
}

func pathUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "username is required")
		return "", false
	}
	return username, true
}

// HandleGetStatistics recomputes and returns a player's statistics.
func HandleGetStatistics(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	username, ok := pathUsername(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsQueryTimeout)
	defer cancel()

	snapshot, err := Refresh(ctx, username)
	if err != nil {
		logger.Error().Err(err).Str("username", username).Msg("Failed to compute statistics")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, models.StatisticsFromDB(snapshot))
}

// HandleListAchievements returns a player's achievements oldest first.
func HandleListAchievements(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	username, ok := pathUsername(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsQueryTimeout)
	defer cancel()

	rows, err := queries.ListAchievementsByUsername(ctx, username)
	if err != nil {
		logger.Error().Err(err).Str("username", username).Msg("Failed to list achievements")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load achievements")
		return
	}

	out := make([]models.Achievement, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.AchievementFromDB(row))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, out)
}

type checkResult struct {
	NewlyAwarded []string             `json:"newlyAwarded"`
	Achievements []models.Achievement `json:"achievements"`
}

// HandleCheckAchievements recomputes a player's statistics, awards any newly
// earned achievements, and returns the full list. Awarding is idempotent:
// repeat checks never duplicate an achievement.
func HandleCheckAchievements(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	username, ok := pathUsername(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsQueryTimeout)
	defer cancel()

	snapshot, err := Refresh(ctx, username)
	if err != nil {
		logger.Error().Err(err).Str("username", username).Msg("Failed to compute statistics")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to check achievements")
		return
	}

	newlyAwarded := make([]string, 0)
	for _, def := range achievementDefs {
		if !def.Earned(snapshot) {
			continue
		}
		affected, err := queries.CreateAchievement(ctx, dbq.CreateAchievementParams{
			UserID:                 snapshot.UserID,
			Username:               username,
			AchievementType:        def.Type,
			AchievementName:        def.Name,
			AchievementDescription: def.Description,
		})
		if err != nil {
			logger.Error().Err(err).Str("username", username).
				Str("achievement", def.Type).Msg("Failed to award achievement")
			apiutil.WriteError(w, http.StatusInternalServerError, "failed to check achievements")
			return
		}
		if affected > 0 {
			newlyAwarded = append(newlyAwarded, def.Type)
		}
	}

	rows, err := queries.ListAchievementsByUsername(ctx, username)
	if err != nil {
		logger.Error().Err(err).Str("username", username).Msg("Failed to list achievements")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to check achievements")
		return
	}

	if len(newlyAwarded) > 0 {
		publish("player_achievements", realtime.EventInsert, username)
	}

	out := make([]models.Achievement, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.AchievementFromDB(row))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, checkResult{
		NewlyAwarded: newlyAwarded,
		Achievements: out,
	})
}
