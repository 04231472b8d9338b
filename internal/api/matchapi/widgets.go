package matchapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/oguzcanoz/halisaha/internal/api/apiutil"
	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/weather"
)

// HandleMatchWeather returns current conditions for the match location.
// Missing coordinates, a missing API key, and upstream failures all degrade
// to a 503 instead of failing the match page.
func HandleMatchWeather(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	match, ok := loadMatchForWidget(w, r)
	if !ok {
		return
	}
	if !match.LocationLat.Valid || !match.LocationLng.Valid || weatherClient == nil {
		apiutil.WriteError(w, http.StatusServiceUnavailable, "weather unavailable")
		return
	}

	conditions, err := weatherClient.Current(r.Context(), match.LocationLat.Float64, match.LocationLng.Float64)
	if err != nil {
		if !errors.Is(err, weather.ErrNotConfigured) {
			logger.Warn().Err(err).Str("match_id", match.ID).Msg("Weather lookup failed")
		}
		apiutil.WriteError(w, http.StatusServiceUnavailable, "weather unavailable")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, conditions)
}

type mapResponse struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	EmbedURL string  `json:"embedUrl"`
}

// HandleMatchMap returns an embeddable map URL for the match location.
func HandleMatchMap(w http.ResponseWriter, r *http.Request) {
	match, ok := loadMatchForWidget(w, r)
	if !ok {
		return
	}
	if !match.LocationLat.Valid || !match.LocationLng.Valid {
		apiutil.WriteError(w, http.StatusUnprocessableEntity, "match has no coordinates")
		return
	}
	if mapsAPIKey == "" {
		apiutil.WriteError(w, http.StatusServiceUnavailable, "maps are not configured")
		return
	}

	lat, lng := match.LocationLat.Float64, match.LocationLng.Float64
	embed := fmt.Sprintf("https://www.google.com/maps/embed/v1/place?%s", url.Values{
		"key": {mapsAPIKey},
		"q":   {fmt.Sprintf("%f,%f", lat, lng)},
	}.Encode())

	_ = apiutil.WriteJSON(w, http.StatusOK, mapResponse{
		Lat:      lat,
		Lng:      lng,
		EmbedURL: embed,
	})
}

func loadMatchForWidget(w http.ResponseWriter, r *http.Request) (dbq.Match, bool) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return dbq.Match{}, false
	}

	matchID := strings.TrimSpace(r.PathValue("id"))
	if matchID == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "match id is required")
		return dbq.Match{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchQueryTimeout)
	defer cancel()

	match, err := queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "match not found")
			return dbq.Match{}, false
		}
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to load match")
		return dbq.Match{}, false
	}
	return match, true
}
