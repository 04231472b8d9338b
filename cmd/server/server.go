// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/oguzcanoz/halisaha/internal/api"
	"github.com/oguzcanoz/halisaha/internal/api/auth"
	"github.com/oguzcanoz/halisaha/internal/api/matchapi"
	"github.com/oguzcanoz/halisaha/internal/api/profileapi"
	"github.com/oguzcanoz/halisaha/internal/api/requests"
	"github.com/oguzcanoz/halisaha/internal/api/social"
	"github.com/oguzcanoz/halisaha/internal/api/stats"
	"github.com/oguzcanoz/halisaha/internal/config"
	"github.com/oguzcanoz/halisaha/internal/realtime"
)

func newServer(cfg *config.Config, hub *realtime.Hub) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithAuth,
		api.WithRequestID,
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
		},
		AllowedHeaders: []string{
			"Content-Type", "X-Creator-Id", "X-Creator-Nickname",
		},
		AllowCredentials: true,
	})

	registerRoutes(router, hub)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      corsHandler.Handler(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, hub *realtime.Hub) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auth
	mux.HandleFunc("POST /api/v1/auth/signup", auth.HandleSignup)
	mux.HandleFunc("POST /api/v1/auth/confirm", auth.HandleConfirm)
	mux.HandleFunc("POST /api/v1/auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.HandleLogout)
	mux.HandleFunc("GET /api/v1/auth/me", auth.HandleMe)
	mux.Handle("GET /api/v1/auth/clerk/callback",
		auth.WithClerkSession(http.HandlerFunc(auth.HandleClerkCallback)))

	// Matches
	mux.HandleFunc("GET /api/v1/matches", matchapi.HandleListMatches)
	mux.HandleFunc("POST /api/v1/matches", matchapi.HandleCreateMatch)
	mux.HandleFunc("GET /api/v1/matches/{id}", matchapi.HandleGetMatch)
	mux.HandleFunc("DELETE /api/v1/matches/{id}", matchapi.HandleDeleteMatch)
	mux.HandleFunc("POST /api/v1/matches/{id}/join", matchapi.HandleJoinMatch)
	mux.HandleFunc("POST /api/v1/matches/{id}/result", matchapi.HandleRecordResult)
	mux.HandleFunc("GET /api/v1/matches/{id}/weather", matchapi.HandleMatchWeather)
	mux.HandleFunc("GET /api/v1/matches/{id}/map", matchapi.HandleMatchMap)

	// Join requests
	mux.HandleFunc("POST /api/v1/matches/{id}/requests", requests.HandleSubmitRequest)
	mux.HandleFunc("POST /api/v1/requests/{id}/approve", requests.HandleApproveRequest)
	mux.HandleFunc("POST /api/v1/requests/{id}/reject", requests.HandleRejectRequest)
	mux.HandleFunc("GET /api/v1/requests/pending", requests.HandleListPendingRequests)
	mux.HandleFunc("GET /api/v1/requests/pending/counts", requests.HandlePendingCounts)

	// Social
	mux.HandleFunc("GET /api/v1/matches/{id}/comments", social.HandleListComments)
	mux.HandleFunc("POST /api/v1/matches/{id}/comments", social.HandleCreateComment)
	mux.HandleFunc("PUT /api/v1/comments/{id}", social.HandleUpdateComment)
	mux.HandleFunc("DELETE /api/v1/comments/{id}", social.HandleDeleteComment)
	mux.HandleFunc("GET /api/v1/matches/{id}/reactions", social.HandleListReactions)
	mux.HandleFunc("POST /api/v1/matches/{id}/reactions", social.HandleSetReaction)
	mux.HandleFunc("DELETE /api/v1/matches/{id}/reactions", social.HandleClearReaction)
	mux.HandleFunc("GET /api/v1/activities", social.HandleListActivities)

	// Profiles & leaderboard
	mux.HandleFunc("GET /api/v1/profiles", profileapi.HandleGetProfile)
	mux.HandleFunc("GET /api/v1/profiles/{id}", profileapi.HandleGetProfile)
	mux.HandleFunc("PUT /api/v1/profiles/{id}", profileapi.HandleUpsertProfile)
	mux.HandleFunc("POST /api/v1/profiles/{id}/stars", profileapi.HandleIncrementStars)
	mux.HandleFunc("GET /api/v1/leaderboard", profileapi.HandleLeaderboard)

	// Statistics & achievements
	mux.HandleFunc("GET /api/v1/players/{username}/statistics", stats.HandleGetStatistics)
	mux.HandleFunc("GET /api/v1/players/{username}/achievements", stats.HandleListAchievements)
	mux.HandleFunc("POST /api/v1/players/{username}/achievements/check", stats.HandleCheckAchievements)

	// Realtime change feed
	mux.Handle("GET /api/v1/realtime", hub)
}
