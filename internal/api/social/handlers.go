// Package social serves match comments, reactions, and the activity feed.
package social

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oguzcanoz/halisaha/internal/api/apiutil"
	"github.com/oguzcanoz/halisaha/internal/api/authz"
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

const socialQueryTimeout = 5 * time.Second

const defaultActivityLimit = 50
const maxActivityLimit = 200

var reactionTypes = []string{"like", "interested", "going"}

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

func validReactionType(v string) bool {
	for _, t := range reactionTypes {
		if t == v {
			return true
		}
	}
	return false
}

func matchExists(ctx context.Context, matchID string) (bool, error) {
	_, err := queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type createCommentRequest struct {
	Username    string `json:"username"`
	CommentText string `json:"commentText"`
}

// HandleCreateComment posts a comment on a match.
func HandleCreateComment(w http.ResponseWriter, r *http.Request) {
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

	var req createCommentRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username, err := matches.ValidatePlayerName(req.Username)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := matches.Sanitize(req.CommentText)
	if !matches.ValidCommentText(text) {
		apiutil.WriteError(w, http.StatusBadRequest, "comment must be between 1 and 500 characters")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), socialQueryTimeout)
	defer cancel()

	ok, err := matchExists(ctx, matchID)
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to post comment")
		return
	}
	if !ok {
		apiutil.WriteError(w, http.StatusNotFound, "match not found")
		return
	}

	row, err := queries.CreateComment(ctx, dbq.CreateCommentParams{
		MatchID:     matchID,
		UserID:      nullIfEmpty(authz.CreatorID(r)),
		Username:    username,
		CommentText: text,
	})
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to create comment")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to post comment")
		return
	}

	recordActivity(ctx, logger, dbq.CreateActivityParams{
		ActivityType: "comment_added",
		UserID:       nullIfEmpty(authz.CreatorID(r)),
		Username:     username,
		MatchID:      sql.NullString{String: matchID, Valid: true},
		Description:  username + " commented on a match",
	})

	publish("match_comments", realtime.EventInsert, row.ID)
	_ = apiutil.WriteJSON(w, http.StatusCreated, models.CommentFromDB(row))
}

// HandleListComments returns a match's comments oldest first.
func HandleListComments(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), socialQueryTimeout)
	defer cancel()

	rows, err := queries.ListCommentsByMatch(ctx, matchID)
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to list comments")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load comments")
		return
	}

	out := make([]models.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.CommentFromDB(row))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, out)
}

type updateCommentRequest struct {
	CommentText string `json:"commentText"`
}

// HandleUpdateComment edits a comment's text. Only the identity that posted
// the comment may edit it.
func HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	comment, ok := loadOwnedComment(w, r)
	if !ok {
		return
	}

	var req updateCommentRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := matches.Sanitize(req.CommentText)
	if !matches.ValidCommentText(text) {
		apiutil.WriteError(w, http.StatusBadRequest, "comment must be between 1 and 500 characters")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), socialQueryTimeout)
	defer cancel()

	if err := queries.UpdateComment(ctx, dbq.UpdateCommentParams{
		ID:          comment.ID,
		CommentText: text,
	}); err != nil {
		logger.Error().Err(err).Str("comment_id", comment.ID).Msg("Failed to update comment")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to update comment")
		return
	}

	updated, err := queries.GetComment(ctx, comment.ID)
	if err != nil {
		logger.Error().Err(err).Str("comment_id", comment.ID).Msg("Failed to reload comment")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to update comment")
		return
	}

	publish("match_comments", realtime.EventUpdate, comment.ID)
	_ = apiutil.WriteJSON(w, http.StatusOK, models.CommentFromDB(updated))
}

// HandleDeleteComment removes a comment. Only the identity that posted the
// comment may delete it.
func HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	comment, ok := loadOwnedComment(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), socialQueryTimeout)
	defer cancel()

	if _, err := queries.DeleteComment(ctx, comment.ID); err != nil {
		logger.Error().Err(err).Str("comment_id", comment.ID).Msg("Failed to delete comment")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}

	publish("match_comments", realtime.EventDelete, comment.ID)
	w.WriteHeader(http.StatusNoContent)
}

func loadOwnedComment(w http.ResponseWriter, r *http.Request) (dbq.Comment, bool) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return dbq.Comment{}, false
	}

	commentID := strings.TrimSpace(r.PathValue("id"))
	if commentID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "comment id is required")
		return dbq.Comment{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), socialQueryTimeout)
	defer cancel()

	comment, err := queries.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "comment not found")
			return dbq.Comment{}, false
		}
		logger.Error().Err(err).Str("comment_id", commentID).Msg("Failed to load comment")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load comment")
		return dbq.Comment{}, false
	}

	callerID := authz.CreatorID(r)
	if !comment.UserID.Valid || callerID == "" || comment.UserID.String != callerID {
		apiutil.WriteError(w, http.StatusForbidden, "only the comment author can modify it")
		return dbq.Comment{}, false
	}
	return comment, true
}

type setReactionRequest struct {
	Username     string `json:"username"`
	ReactionType string `json:"reactionType"`
}

// HandleSetReaction sets the caller's reaction on a match, replacing any
// previous one.
func HandleSetReaction(w http.ResponseWriter, r *http.Request) {
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
	userID := authz.CreatorID(r)
	if userID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "user identity is required")
		return
	}

	var req setReactionRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validReactionType(req.ReactionType) {
		apiutil.WriteError(w, http.StatusBadRequest, "reaction must be like, interested, or going")
		return
	}
	username, err := matches.ValidatePlayerName(req.Username)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), socialQueryTimeout)
	defer cancel()

	ok, err := matchExists(ctx, matchID)
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to set reaction")
		return
	}
	if !ok {
		apiutil.WriteError(w, http.StatusNotFound, "match not found")
		return
	}

	row, err := queries.UpsertReaction(ctx, dbq.UpsertReactionParams{
		MatchID:      matchID,
		UserID:       userID,
		Username:     username,
		ReactionType: req.ReactionType,
	})
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to set reaction")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to set reaction")
		return
	}

	recordActivity(ctx, logger, dbq.CreateActivityParams{
		ActivityType: "reaction_added",
		UserID:       sql.NullString{String: userID, Valid: true},
		Username:     username,
		MatchID:      sql.NullString{String: matchID, Valid: true},
		Description:  username + " reacted " + req.ReactionType,
	})

	publish("match_reactions", realtime.EventUpdate, row.ID)
	_ = apiutil.WriteJSON(w, http.StatusOK, models.ReactionFromDB(row))
}

// HandleClearReaction removes the caller's reaction from a match.
func HandleClearReaction(w http.ResponseWriter, r *http.Request) {
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
	userID := authz.CreatorID(r)
	if userID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "user identity is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), socialQueryTimeout)
	defer cancel()

	affected, err := queries.DeleteReaction(ctx, dbq.DeleteReactionParams{
		MatchID: matchID,
		UserID:  userID,
	})
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to clear reaction")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to clear reaction")
		return
	}
	if affected == 0 {
		apiutil.WriteError(w, http.StatusNotFound, "no reaction to clear")
		return
	}

	publish("match_reactions", realtime.EventDelete, matchID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListReactions returns a match's reactions oldest first.
func HandleListReactions(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), socialQueryTimeout)
	defer cancel()

	rows, err := queries.ListReactionsByMatch(ctx, matchID)
	if err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to list reactions")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load reactions")
		return
	}

	out := make([]models.Reaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ReactionFromDB(row))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, out)
}

// HandleListActivities returns the newest activities, limited by the
// `limit` query parameter.
func HandleListActivities(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	limit := int64(defaultActivityLimit)
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			apiutil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > maxActivityLimit {
			parsed = maxActivityLimit
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), socialQueryTimeout)
	defer cancel()

	rows, err := queries.ListActivities(ctx, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list activities")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load activities")
		return
	}

	out := make([]models.Activity, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ActivityFromDB(row))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, out)
}

func recordActivity(ctx context.Context, logger *zerolog.Logger, arg dbq.CreateActivityParams) {
	if err := queries.CreateActivity(ctx, arg); err != nil {
		logger.Error().Err(err).Str("activity_type", arg.ActivityType).Msg("Failed to record activity")
		return
	}
	publish("activities", realtime.EventInsert, "")
}

func nullIfEmpty(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
