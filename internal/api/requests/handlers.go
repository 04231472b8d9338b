// Package requests implements the join-request workflow: players ask to
// join a match and the creator approves or rejects each request.
package requests

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oguzcanoz/halisaha/internal/api/apiutil"
	"github.com/oguzcanoz/halisaha/internal/api/authz"
	appdb "github.com/oguzcanoz/halisaha/internal/db"
	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/email"
	"github.com/oguzcanoz/halisaha/internal/matches"
	"github.com/oguzcanoz/halisaha/internal/models"
	"github.com/oguzcanoz/halisaha/internal/ratelimit"
	"github.com/oguzcanoz/halisaha/internal/realtime"
)

var (
	queries     *dbq.Queries
	queriesOnce sync.Once
	hub         *realtime.Hub
	emailClient email.Sender
	limiter     *ratelimit.Limiter
)

const requestQueryTimeout = 5 * time.Second

const (
	statusPending  = "pending"
	statusApproved = "approved"
	statusRejected = "rejected"
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB, h *realtime.Hub, sender email.Sender, rl *ratelimit.Limiter) {
	if database == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = database.Queries
		hub = h
		emailClient = sender
		limiter = rl
	})
}

func publish(table, event, id string) {
	if hub != nil {
		hub.Publish(table, event, id)
	}
}

type submitRequest struct {
	ParticipantName string `json:"participantName"`
	Team            string `json:"team"`
	Position        string `json:"position"`
}

// HandleSubmitRequest files a join request for a match. The duplicate checks
// are advisory reads, not constraints; two concurrent submissions with the
// same name can both be accepted.
func HandleSubmitRequest(w http.ResponseWriter, r *http.Request) {
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

	var req submitRequest
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

	ip := ratelimit.GetClientIP(r, false)
	if limiter != nil {
		if res := limiter.CheckSubmit(name, ip); !res.Allowed {
			ratelimit.LogRateLimitExceeded("request_submit", name, ip, res.Reason)
			apiutil.WriteError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestQueryTimeout)
	defer cancel()

	match, err := queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "match not found")
			return
		}
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to submit request")
		return
	}

	if match.MaxPlayers.Valid && match.CurrentPlayers >= match.MaxPlayers.Int64 {
		apiutil.WriteError(w, http.StatusConflict, "match is full")
		return
	}

	joined, err := queries.CountParticipantByName(ctx, dbq.CountParticipantByNameParams{
		MatchID:         matchID,
		ParticipantName: name,
	})
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to check participants")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to submit request")
		return
	}
	if joined > 0 {
		apiutil.WriteError(w, http.StatusConflict, "player already joined this match")
		return
	}

	pending, err := queries.CountPendingRequest(ctx, dbq.CountPendingRequestParams{
		MatchID:         matchID,
		ParticipantName: name,
	})
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to check pending requests")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to submit request")
		return
	}
	if pending > 0 {
		apiutil.WriteError(w, http.StatusConflict, "request already sent for this match")
		return
	}

	row, err := queries.CreateRequest(ctx, dbq.CreateRequestParams{
		MatchID:         matchID,
		ParticipantName: name,
		Team:            nullIfEmpty(req.Team),
		Position:        nullIfEmpty(req.Position),
	})
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to create request")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to submit request")
		return
	}

	if limiter != nil {
		limiter.RecordSubmit(name, ip)
	}

	notifyCreator(ctx, logger, match, email.BuildRequestReceived(name, matchDetails(match)))
	publish("match_requests", realtime.EventInsert, row.ID)
	logger.Info().Str("match_id", matchID).Str("participant", name).Msg("Join request submitted")
	_ = apiutil.WriteJSON(w, http.StatusCreated, models.RequestFromDB(row))
}

// HandleApproveRequest approves a pending request: the status flips, the
// player is added unless already present, and the match player count is
// recounted. The three writes are independent; a failure partway leaves the
// earlier ones in place.
func HandleApproveRequest(w http.ResponseWriter, r *http.Request) {
	resolveRequest(w, r, statusApproved)
}

// HandleRejectRequest rejects a pending request.
func HandleRejectRequest(w http.ResponseWriter, r *http.Request) {
	resolveRequest(w, r, statusRejected)
}

func resolveRequest(w http.ResponseWriter, r *http.Request, newStatus string) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	requestID := strings.TrimSpace(r.PathValue("id"))
	if requestID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "request id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestQueryTimeout)
	defer cancel()

	request, err := queries.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "request not found")
			return
		}
		logger.Error().Err(err).Str("request_id", requestID).Msg("Failed to load request")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to resolve request")
		return
	}

	if request.Status != statusPending {
		apiutil.WriteError(w, http.StatusConflict, "request already "+request.Status)
		return
	}

	match, err := queries.GetMatch(ctx, request.MatchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "match not found")
			return
		}
		logger.Error().Err(err).Str("match_id", request.MatchID).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to resolve request")
		return
	}

	creatorID := authz.CreatorID(r)
	if !match.CreatorID.Valid || creatorID == "" || match.CreatorID.String != creatorID {
		apiutil.WriteError(w, http.StatusForbidden, "only the match creator can resolve requests")
		return
	}

	if err := queries.UpdateRequestStatus(ctx, dbq.UpdateRequestStatusParams{
		ID:     requestID,
		Status: newStatus,
	}); err != nil {
		logger.Error().Err(err).Str("request_id", requestID).Msg("Failed to update request status")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to resolve request")
		return
	}

	if newStatus == statusApproved {
		if err := admitPlayer(ctx, logger, match, request); err != nil {
			// The status update already landed; report the failure and let
			// the client retry from the participant list.
			logger.Error().Err(err).Str("request_id", requestID).Msg("Failed to admit approved player")
			apiutil.WriteError(w, http.StatusInternalServerError, "request approved but player not admitted")
			return
		}
		notifyRequester(ctx, logger, match, request.ParticipantName)
	}

	publish("match_requests", realtime.EventUpdate, requestID)
	publish("matches", realtime.EventUpdate, request.MatchID)

	request.Status = newStatus
	logger.Info().
		Str("request_id", requestID).
		Str("status", newStatus).
		Msg("Join request resolved")
	_ = apiutil.WriteJSON(w, http.StatusOK, models.RequestFromDB(request))
}

// admitPlayer inserts the participant if absent, then rewrites the player
// count from a recount.
func admitPlayer(ctx context.Context, logger *zerolog.Logger, match dbq.Match, request dbq.MatchRequest) error {
	existing, err := queries.CountParticipantByName(ctx, dbq.CountParticipantByNameParams{
		MatchID:         request.MatchID,
		ParticipantName: request.ParticipantName,
	})
	if err != nil {
		return err
	}

	if existing == 0 {
		participant, err := queries.CreateParticipant(ctx, dbq.CreateParticipantParams{
			MatchID:         request.MatchID,
			ParticipantName: request.ParticipantName,
			Team:            request.Team,
			Position:        request.Position,
		})
		if err != nil {
			return err
		}
		publish("match_participants", realtime.EventInsert, participant.ID)
	}

	count, err := queries.CountParticipantsByMatch(ctx, request.MatchID)
	if err != nil {
		return err
	}
	if err := queries.SetMatchPlayerCount(ctx, dbq.SetMatchPlayerCountParams{
		ID:             request.MatchID,
		CurrentPlayers: count,
	}); err != nil {
		return err
	}

	if err := queries.CreateActivity(ctx, dbq.CreateActivityParams{
		ActivityType: "match_joined",
		Username:     request.ParticipantName,
		MatchID:      sql.NullString{String: request.MatchID, Valid: true},
		Description:  request.ParticipantName + " joined " + matchTitle(match),
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to record activity")
	} else {
		publish("activities", realtime.EventInsert, "")
	}

	return nil
}

// HandleListPendingRequests returns pending requests across the creator's
// matches, newest first, with match titles joined in.
func HandleListPendingRequests(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	creatorID := authz.CreatorID(r)
	if creatorID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "creator identity is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestQueryTimeout)
	defer cancel()

	rows, err := queries.ListPendingRequestsByCreator(ctx, creatorID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list pending requests")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load requests")
		return
	}

	out := make([]models.MatchRequest, 0, len(rows))
	for _, row := range rows {
		req := models.RequestFromDB(row.MatchRequest)
		if row.MatchTitle.Valid {
			req.MatchTitle = row.MatchTitle.String
		}
		out = append(out, req)
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, out)
}

// HandlePendingCounts returns the number of pending requests per match for
// the creator's matches, for the badge counters.
func HandlePendingCounts(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	creatorID := authz.CreatorID(r)
	if creatorID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "creator identity is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestQueryTimeout)
	defer cancel()

	rows, err := queries.ListPendingRequestsByCreator(ctx, creatorID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to count pending requests")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load request counts")
		return
	}

	counts := make(map[string]int64)
	for _, row := range rows {
		counts[row.MatchID]++
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, pendingCountsResponse{
		Counts: counts,
		Total:  int64(len(rows)),
	})
}

type pendingCountsResponse struct {
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

// notifyCreator emails the match creator when their identity maps to a
// registered user. Anonymous creators get nothing.
func notifyCreator(ctx context.Context, logger *zerolog.Logger, match dbq.Match, msg email.Message) {
	if emailClient == nil || !match.CreatorID.Valid {
		return
	}
	user, err := queries.GetUserByID(ctx, match.CreatorID.String)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn().Err(err).Msg("Failed to resolve creator for notification")
		}
		return
	}
	email.SendAsync(emailClient, user.Email, msg, logger)
}

// notifyRequester emails the approved player when a profile with their name
// belongs to a registered user.
func notifyRequester(ctx context.Context, logger *zerolog.Logger, match dbq.Match, name string) {
	if emailClient == nil {
		return
	}
	profile, err := queries.GetProfileByUsername(ctx, name)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn().Err(err).Msg("Failed to resolve requester profile for notification")
		}
		return
	}
	user, err := queries.GetUserByID(ctx, profile.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Warn().Err(err).Msg("Failed to resolve requester for notification")
		}
		return
	}
	email.SendAsync(emailClient, user.Email, email.BuildRequestApproved(name, matchDetails(match)), logger)
}

func matchDetails(match dbq.Match) email.MatchDetails {
	return email.MatchDetails{
		Title:    match.Title.String,
		Date:     match.MatchDate.String,
		Time:     match.MatchTime.String,
		Location: match.Location.String,
	}
}

func matchTitle(m dbq.Match) string {
	if m.Title.Valid && strings.TrimSpace(m.Title.String) != "" {
		return m.Title.String
	}
	return "a match"
}

func nullIfEmpty(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
