// Package profileapi serves player profiles and the star leaderboard.
package profileapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oguzcanoz/halisaha/internal/api/apiutil"
	appdb "github.com/oguzcanoz/halisaha/internal/db"
	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/matches"
	"github.com/oguzcanoz/halisaha/internal/models"
	"github.com/oguzcanoz/halisaha/internal/realtime"
)

var (
	queries     *dbq.Queries
	queriesOnce sync.Once
	hub         *realtime.Hub
)

const profileQueryTimeout = 5 * time.Second

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

// HandleGetProfile returns a profile by id, or by username when the
// `username` query parameter is set instead of a path id.
func HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), profileQueryTimeout)
	defer cancel()

	var (
		row dbq.Profile
		err error
	)
	if id := strings.TrimSpace(r.PathValue("id")); id != "" {
		row, err = queries.GetProfile(ctx, id)
	} else if username := strings.TrimSpace(r.URL.Query().Get("username")); username != "" {
		row, err = queries.GetProfileByUsername(ctx, username)
	} else {
		apiutil.WriteError(w, http.StatusBadRequest, "profile id or username is required")
		return
	}

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "profile not found")
			return
		}
		logger.Error().Err(err).Msg("Failed to load profile")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, models.ProfileFromDB(row))
}

type upsertProfileRequest struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	Position  string `json:"position"`
	Phone     string `json:"phone"`
}

// HandleUpsertProfile creates or updates the profile with the given id.
// Stars are never written through this path.
func HandleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	profileID := strings.TrimSpace(r.PathValue("id"))
	if profileID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "profile id is required")
		return
	}

	var req upsertProfileRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username, err := matches.ValidatePlayerName(req.Username)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Position != "" && !matches.ValidPosition(req.Position) {
		apiutil.WriteError(w, http.StatusBadRequest, "unknown position")
		return
	}

	var phone sql.NullString
	if strings.TrimSpace(req.Phone) != "" {
		normalized, err := NormalizePhone(req.Phone)
		if err != nil {
			apiutil.WriteError(w, http.StatusBadRequest, "invalid phone number")
			return
		}
		phone = sql.NullString{String: normalized, Valid: true}
	}

	ctx, cancel := context.WithTimeout(r.Context(), profileQueryTimeout)
	defer cancel()

	row, err := queries.UpsertProfile(ctx, dbq.UpsertProfileParams{
		ID:        profileID,
		Username:  username,
		AvatarURL: nullIfEmpty(req.AvatarURL),
		Position:  nullIfEmpty(req.Position),
		Phone:     phone,
	})
	if err != nil {
		logger.Error().Err(err).Str("profile_id", profileID).Msg("Failed to upsert profile")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	publish("profiles", realtime.EventUpdate, profileID)
	logger.Info().Str("profile_id", profileID).Msg("Profile saved")
	_ = apiutil.WriteJSON(w, http.StatusOK, models.ProfileFromDB(row))
}

// HandleIncrementStars adds one star to a profile. Read-modify-write, same
// as the match result award path: concurrent increments can lose updates.
func HandleIncrementStars(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	profileID := strings.TrimSpace(r.PathValue("id"))
	if profileID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "profile id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), profileQueryTimeout)
	defer cancel()

	profile, err := queries.GetProfile(ctx, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "profile not found")
			return
		}
		logger.Error().Err(err).Str("profile_id", profileID).Msg("Failed to load profile")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to award star")
		return
	}

	if err := queries.SetProfileStars(ctx, dbq.SetProfileStarsParams{
		ID:    profileID,
		Stars: profile.Stars + 1,
	}); err != nil {
		logger.Error().Err(err).Str("profile_id", profileID).Msg("Failed to award star")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to award star")
		return
	}

	updated, err := queries.GetProfile(ctx, profileID)
	if err != nil {
		logger.Error().Err(err).Str("profile_id", profileID).Msg("Failed to reload profile")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to award star")
		return
	}

	publish("profiles", realtime.EventUpdate, profileID)
	_ = apiutil.WriteJSON(w, http.StatusOK, models.ProfileFromDB(updated))
}

type leaderboardEntry struct {
	Rank int64 `json:"rank"`
	models.Profile
}

// HandleLeaderboard returns all profiles ordered by stars, ties broken by
// username. Equal star counts share the same rank.
func HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), profileQueryTimeout)
	defer cancel()

	rows, err := queries.ListProfilesByStars(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load leaderboard")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	out := make([]leaderboardEntry, 0, len(rows))
	var rank, lastStars int64
	for i, row := range rows {
		if i == 0 || row.Stars != lastStars {
			rank = int64(i + 1)
			lastStars = row.Stars
		}
		out = append(out, leaderboardEntry{
			Rank:    rank,
			Profile: models.ProfileFromDB(row),
		})
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, out)
}

func nullIfEmpty(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
