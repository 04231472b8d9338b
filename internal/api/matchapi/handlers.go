// Package matchapi serves the match endpoints: listing, creation, detail,
// deletion, direct joins, and post-match star ratings.
package matchapi

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
	"github.com/oguzcanoz/halisaha/internal/matches"
	"github.com/oguzcanoz/halisaha/internal/models"
	"github.com/oguzcanoz/halisaha/internal/realtime"
	"github.com/oguzcanoz/halisaha/internal/weather"
)

var (
	queries       *dbq.Queries
	store         *appdb.DB
	queriesOnce   sync.Once
	hub           *realtime.Hub
	weatherClient *weather.Client
	mapsAPIKey    string
)

const matchQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB, h *realtime.Hub, wc *weather.Client, mapsKey string) {
	if database == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = database.Queries
		store = database
		hub = h
		weatherClient = wc
		mapsAPIKey = mapsKey
	})
}

func publish(table, event, id string) {
	if hub != nil {
		hub.Publish(table, event, id)
	}
}

// attachParticipants loads participants for the given matches and joins star
// ratings from profiles by username. Names without a profile get no rating.
func attachParticipants(ctx context.Context, ms []models.Match) error {
	if len(ms) == 0 {
		return nil
	}

	rows, err := queries.ListParticipants(ctx)
	if err != nil {
		return err
	}

	byMatch := make(map[string][]models.Participant, len(ms))
	starCache := make(map[string]*int64)
	for _, row := range rows {
		p := models.ParticipantFromDB(row)
		stars, cached := starCache[p.ParticipantName]
		if !cached {
			profile, err := queries.GetProfileByUsername(ctx, p.ParticipantName)
			switch {
			case err == nil:
				v := profile.Stars
				stars = &v
			case errors.Is(err, sql.ErrNoRows):
				stars = nil
			default:
				return err
			}
			starCache[p.ParticipantName] = stars
		}
		p.Stars = stars
		byMatch[p.MatchID] = append(byMatch[p.MatchID], p)
	}

	for i := range ms {
		if ps := byMatch[ms[i].ID]; ps != nil {
			ms[i].Participants = ps
		}
	}
	return nil
}

// HandleListMatches returns all matches, upcoming first in ascending order,
// then past matches newest first.
func HandleListMatches(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchQueryTimeout)
	defer cancel()

	var (
		rows []dbq.Match
		err  error
	)
	if creatorID := strings.TrimSpace(r.URL.Query().Get("creatorId")); creatorID != "" {
		rows, err = queries.ListMatchesByCreator(ctx, creatorID)
	} else {
		rows, err = queries.ListMatches(ctx)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list matches")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load matches")
		return
	}

	ms := make([]models.Match, 0, len(rows))
	for _, row := range rows {
		ms = append(ms, models.MatchFromDB(row))
	}

	if err := attachParticipants(ctx, ms); err != nil {
		logger.Error().Err(err).Msg("Failed to load participants")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load matches")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, matches.Sort(ms, time.Now()))
}

type createMatchRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	MatchDate      string   `json:"matchDate"`
	MatchTime      string   `json:"matchTime"`
	Location       string   `json:"location"`
	LocationLat    *float64 `json:"locationLat"`
	LocationLng    *float64 `json:"locationLng"`
	MaxPlayers     *int64   `json:"maxPlayers"`
	PricePerPlayer *float64 `json:"pricePerPlayer"`
}

func (req *createMatchRequest) validate() error {
	req.Title = matches.Sanitize(req.Title)
	req.Description = matches.Sanitize(req.Description)
	req.Location = matches.Sanitize(req.Location)

	if req.Title == "" {
		return apiutil.FieldError{Field: "title", Reason: "is required"}
	}
	if !matches.ValidTitle(req.Title) {
		return apiutil.FieldError{Field: "title", Reason: "is too long"}
	}
	if !matches.ValidDescription(req.Description) {
		return apiutil.FieldError{Field: "description", Reason: "is too long"}
	}
	if !matches.ValidLocation(req.Location) {
		return apiutil.FieldError{Field: "location", Reason: "is too long"}
	}
	if req.MaxPlayers != nil && !matches.ValidMaxPlayers(*req.MaxPlayers) {
		return apiutil.FieldError{Field: "maxPlayers", Reason: "must be between 2 and 22"}
	}
	if req.PricePerPlayer != nil && !matches.ValidPrice(*req.PricePerPlayer) {
		return apiutil.FieldError{Field: "pricePerPlayer", Reason: "must be between 0 and 1000"}
	}
	if (req.LocationLat == nil) != (req.LocationLng == nil) {
		return apiutil.FieldError{Field: "location", Reason: "requires both latitude and longitude"}
	}
	if req.LocationLat != nil && !matches.ValidCoordinates(*req.LocationLat, *req.LocationLng) {
		return apiutil.FieldError{Field: "location", Reason: "coordinates out of range"}
	}
	if req.MatchDate != "" {
		if _, err := time.Parse("2006-01-02", req.MatchDate); err != nil {
			return apiutil.FieldError{Field: "matchDate", Reason: "must be YYYY-MM-DD"}
		}
	}
	return nil
}

// HandleCreateMatch creates a match owned by the requesting creator identity.
func HandleCreateMatch(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req createMatchRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	creatorID := authz.CreatorID(r)
	nickname := matches.Sanitize(authz.CreatorNickname(r))

	ctx, cancel := context.WithTimeout(r.Context(), matchQueryTimeout)
	defer cancel()

	// The match row and its match_created activity commit together.
	var row dbq.Match
	err := store.RunInTx(ctx, func(tx *appdb.DB) error {
		created, err := tx.Queries.CreateMatch(ctx, dbq.CreateMatchParams{
			Title:           sql.NullString{String: req.Title, Valid: true},
			Description:     nullIfEmpty(req.Description),
			MatchDate:       nullIfEmpty(req.MatchDate),
			MatchTime:       nullIfEmpty(req.MatchTime),
			Location:        nullIfEmpty(req.Location),
			LocationLat:     nullFloat(req.LocationLat),
			LocationLng:     nullFloat(req.LocationLng),
			MaxPlayers:      nullInt(req.MaxPlayers),
			PricePerPlayer:  nullFloat(req.PricePerPlayer),
			CreatorID:       nullIfEmpty(creatorID),
			CreatorNickname: nullIfEmpty(nickname),
		})
		if err != nil {
			return err
		}
		row = created
		return tx.Queries.CreateActivity(ctx, dbq.CreateActivityParams{
			ActivityType: "match_created",
			UserID:       nullIfEmpty(creatorID),
			Username:     orAnonymous(nickname),
			MatchID:      sql.NullString{String: row.ID, Valid: true},
			Description:  orAnonymous(nickname) + " created " + req.Title,
		})
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to create match")
		return
	}

	publish("matches", realtime.EventInsert, row.ID)
	publish("activities", realtime.EventInsert, "")
	logger.Info().Str("match_id", row.ID).Msg("Match created")
	_ = apiutil.WriteJSON(w, http.StatusCreated, models.MatchFromDB(row))
}

// HandleGetMatch returns a single match with its participants.
func HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	matchID := strings.TrimSpace(r.PathValue("id"))
	if matchID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "match id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchQueryTimeout)
	defer cancel()

	row, err := queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "match not found")
			return
		}
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load match")
		return
	}

	m := models.MatchFromDB(row)
	ms := []models.Match{m}
	if err := attachParticipants(ctx, ms); err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load participants")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load match")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, ms[0])
}

// HandleDeleteMatch removes a match. Only the creator identity that made the
// match may delete it.
func HandleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	matchID := strings.TrimSpace(r.PathValue("id"))
	if matchID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "match id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchQueryTimeout)
	defer cancel()

	row, err := queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "match not found")
			return
		}
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to delete match")
		return
	}

	creatorID := authz.CreatorID(r)
	if !row.CreatorID.Valid || creatorID == "" || row.CreatorID.String != creatorID {
		apiutil.WriteError(w, http.StatusForbidden, "only the match creator can delete it")
		return
	}

	if _, err := queries.DeleteMatch(ctx, matchID); err != nil {
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to delete match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to delete match")
		return
	}

	publish("matches", realtime.EventDelete, matchID)
	logger.Info().Str("match_id", matchID).Msg("Match deleted")
	w.WriteHeader(http.StatusNoContent)
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

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func orAnonymous(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Anonim"
	}
	return name
}
