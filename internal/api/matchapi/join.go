package matchapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/oguzcanoz/halisaha/internal/api/apiutil"
	"github.com/oguzcanoz/halisaha/internal/api/authz"
	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/matches"
	"github.com/oguzcanoz/halisaha/internal/models"
	"github.com/oguzcanoz/halisaha/internal/realtime"
)

type joinMatchRequest struct {
	ParticipantName string `json:"participantName"`
	Team            string `json:"team"`
	Position        string `json:"position"`
}

// HandleJoinMatch adds a participant directly, without the request workflow.
// The duplicate check is advisory: concurrent joins with the same name can
// both pass it. The player count is bumped rather than recounted, so it can
// drift from the participant rows.
func HandleJoinMatch(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	matchID := strings.TrimSpace(r.PathValue("id"))
	if matchID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "match id is required")
		return
	}

	var req joinMatchRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name, err := matches.ValidatePlayerName(req.ParticipantName)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Team != "" && !matches.ValidTeam(req.Team) {
		apiutil.WriteError(w, http.StatusBadRequest, "team must be A or B")
		return
	}
	if req.Position != "" && !matches.ValidPosition(req.Position) {
		apiutil.WriteError(w, http.StatusBadRequest, "unknown position")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchQueryTimeout)
	defer cancel()

	match, err := queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "match not found")
			return
		}
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to join match")
		return
	}

	if match.MaxPlayers.Valid && match.CurrentPlayers >= match.MaxPlayers.Int64 {
		apiutil.WriteError(w, http.StatusConflict, "match is full")
		return
	}

	existing, err := queries.CountParticipantByName(ctx, dbq.CountParticipantByNameParams{
		MatchID:         matchID,
		ParticipantName: name,
	})
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to check existing participant")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to join match")
		return
	}
	if existing > 0 {
		apiutil.WriteError(w, http.StatusConflict, "player already joined this match")
		return
	}

	participant, err := queries.CreateParticipant(ctx, dbq.CreateParticipantParams{
		MatchID:         matchID,
		ParticipantName: name,
		Team:            nullIfEmpty(req.Team),
		Position:        nullIfEmpty(req.Position),
	})
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to create participant")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to join match")
		return
	}

	if err := queries.IncrementMatchPlayerCount(ctx, matchID); err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to bump player count")
	}

	recordActivity(ctx, logger, dbq.CreateActivityParams{
		ActivityType: "match_joined",
		Username:     name,
		MatchID:      sql.NullString{String: matchID, Valid: true},
		Description:  name + " joined " + matchTitle(match),
	})

	publish("match_participants", realtime.EventInsert, participant.ID)
	publish("matches", realtime.EventUpdate, matchID)
	logger.Info().Str("match_id", matchID).Str("participant", name).Msg("Player joined match")
	_ = apiutil.WriteJSON(w, http.StatusCreated, models.ParticipantFromDB(participant))
}

type recordResultRequest struct {
	WinningTeam string `json:"winningTeam"`
}

type recordResultResponse struct {
	WinningTeam    string `json:"winningTeam"`
	UpdatedPlayers int    `json:"updatedPlayers"`
}

// HandleRecordResult records the winning team and awards each of its
// participants a star. The award lands on the profile whose username equals
// the participant name; players without a profile are skipped. Each award is
// an independent read-modify-write: a failure on one player's update does
// not roll back the others.
func HandleRecordResult(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	matchID := strings.TrimSpace(r.PathValue("id"))
	if matchID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "match id is required")
		return
	}

	var req recordResultRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !matches.ValidTeam(req.WinningTeam) {
		apiutil.WriteError(w, http.StatusBadRequest, "winning team must be A or B")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchQueryTimeout)
	defer cancel()

	match, err := queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "match not found")
			return
		}
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to record result")
		return
	}

	creatorID := authz.CreatorID(r)
	if !match.CreatorID.Valid || creatorID == "" || match.CreatorID.String != creatorID {
		apiutil.WriteError(w, http.StatusForbidden, "only the match creator can record the result")
		return
	}

	winners, err := queries.ListParticipantsByMatchAndTeam(ctx, dbq.ListParticipantsByMatchAndTeamParams{
		MatchID: matchID,
		Team:    req.WinningTeam,
	})
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load winning team")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to record result")
		return
	}

	updated := 0
	for _, p := range winners {
		// Profiles are joined by display name; participants without an
		// account simply have no profile row to credit.
		profile, err := queries.GetProfileByUsername(ctx, p.ParticipantName)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				logger.Error().Err(err).Str("participant", p.ParticipantName).Msg("Failed to load profile for star award")
			}
			continue
		}

		if err := queries.SetProfileStars(ctx, dbq.SetProfileStarsParams{
			ID:    profile.ID,
			Stars: profile.Stars + 1,
		}); err != nil {
			logger.Error().Err(err).Str("participant", p.ParticipantName).Msg("Failed to award star")
			continue
		}

		recordActivity(ctx, logger, dbq.CreateActivityParams{
			ActivityType: "stars_earned",
			UserID:       sql.NullString{String: profile.ID, Valid: true},
			Username:     p.ParticipantName,
			MatchID:      sql.NullString{String: matchID, Valid: true},
			Description:  p.ParticipantName + " earned a star winning " + matchTitle(match),
			Metadata:     sql.NullString{String: `{"stars":1}`, Valid: true},
		})

		publish("profiles", realtime.EventUpdate, profile.ID)
		updated++
	}

	logger.Info().Str("match_id", matchID).Str("winning_team", req.WinningTeam).
		Int("updated_players", updated).Msg("Match result recorded")
	_ = apiutil.WriteJSON(w, http.StatusOK, recordResultResponse{
		WinningTeam:    req.WinningTeam,
		UpdatedPlayers: updated,
	})
}

func matchTitle(m dbq.Match) string {
	if m.Title.Valid && strings.TrimSpace(m.Title.String) != "" {
		return m.Title.String
	}
	return "a match"
}
