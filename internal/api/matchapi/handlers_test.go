package matchapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appdb "github.com/oguzcanoz/halisaha/internal/db"
	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/models"
	"github.com/oguzcanoz/halisaha/internal/testutil"
)

func setupMatchTest(t *testing.T) *appdb.DB {
	t.Helper()
	database := testutil.NewTestDB(t)
	queries = database.Queries
	store = database
	hub = nil
	weatherClient = nil
	mapsAPIKey = ""
	return database
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path string, pathID string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func createTestMatch(t *testing.T, creatorID string, body createMatchRequest) models.Match {
	t.Helper()
	headers := map[string]string{"X-Creator-Id": creatorID, "X-Creator-Nickname": "Organizer"}
	w := doJSON(t, HandleCreateMatch, http.MethodPost, "/api/matches", "", headers, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create match failed: %d %s", w.Code, w.Body.String())
	}
	var m models.Match
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode match: %v", err)
	}
	return m
}

func TestHandleCreateMatch(t *testing.T) {
	database := setupMatchTest(t)

	maxPlayers := int64(10)
	price := 25.0
	m := createTestMatch(t, "creator-1", createMatchRequest{
		Title:          "Friday Night 5v5",
		Description:    "Weekly game",
		MatchDate:      "2030-06-06",
		MatchTime:      "21:00",
		Location:       "Kadikoy Astroturf",
		MaxPlayers:     &maxPlayers,
		PricePerPlayer: &price,
	})

	if m.Title == nil || *m.Title != "Friday Night 5v5" {
		t.Errorf("unexpected title: %v", m.Title)
	}
	if m.CurrentPlayers != 0 {
		t.Errorf("new match should have 0 players, got %d", m.CurrentPlayers)
	}
	if m.CreatorNickname == nil || *m.CreatorNickname != "Organizer" {
		t.Errorf("creator nickname not stored: %v", m.CreatorNickname)
	}

	activities, err := database.Queries.ListActivities(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 1 || activities[0].ActivityType != "match_created" {
		t.Errorf("expected one match_created activity, got %+v", activities)
	}
}

func TestHandleCreateMatchRollsBackOnActivityFailure(t *testing.T) {
	database := setupMatchTest(t)

	// Break the activity insert; the match row must not survive alone.
	if _, err := database.DB.Exec("DROP TABLE activities"); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, HandleCreateMatch, http.MethodPost, "/api/matches", "", nil, createMatchRequest{
		Title: "Ghost Game",
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}

	rows, err := database.Queries.ListMatches(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("match row survived failed creation: %+v", rows)
	}
}

func TestHandleCreateMatchValidation(t *testing.T) {
	setupMatchTest(t)

	tooMany := int64(30)
	badPrice := 5000.0
	badLat := 200.0
	lng := 29.0
	tests := []struct {
		name string
		req  createMatchRequest
	}{
		{"missing title", createMatchRequest{}},
		{"bad date", createMatchRequest{Title: "t", MatchDate: "06/06/2030"}},
		{"too many players", createMatchRequest{Title: "t", MaxPlayers: &tooMany}},
		{"price out of range", createMatchRequest{Title: "t", PricePerPlayer: &badPrice}},
		{"bad coordinates", createMatchRequest{Title: "t", LocationLat: &badLat, LocationLng: &lng}},
		{"lat without lng", createMatchRequest{Title: "t", LocationLat: &lng}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, HandleCreateMatch, http.MethodPost, "/api/matches", "", nil, tt.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleCreateMatchStripsScriptTags(t *testing.T) {
	setupMatchTest(t)

	m := createTestMatch(t, "creator-1", createMatchRequest{
		Title: "Derby <script>alert(1)</script>Night",
	})
	if m.Title == nil || *m.Title != "Derby Night" {
		t.Errorf("script tag not stripped: %v", *m.Title)
	}
}

func TestHandleListMatchesOrdersUpcomingFirst(t *testing.T) {
	setupMatchTest(t)

	past := createTestMatch(t, "creator-1", createMatchRequest{
		Title: "Past Game", MatchDate: "2020-01-10", MatchTime: "20:00",
	})
	future := createTestMatch(t, "creator-1", createMatchRequest{
		Title: "Future Game", MatchDate: "2030-01-10", MatchTime: "20:00",
	})

	w := doJSON(t, HandleListMatches, http.MethodGet, "/api/matches", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d", w.Code)
	}
	var ms []models.Match
	if err := json.Unmarshal(w.Body.Bytes(), &ms); err != nil {
		t.Fatal(err)
	}
	if len(ms) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(ms))
	}
	if ms[0].ID != future.ID || ms[1].ID != past.ID {
		t.Errorf("expected upcoming match first, got order %s, %s", ms[0].ID, ms[1].ID)
	}
}

func TestHandleListMatchesByCreator(t *testing.T) {
	setupMatchTest(t)

	mine := createTestMatch(t, "creator-1", createMatchRequest{Title: "Mine"})
	createTestMatch(t, "creator-2", createMatchRequest{Title: "Theirs"})

	w := doJSON(t, HandleListMatches, http.MethodGet, "/api/matches?creatorId=creator-1", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d", w.Code)
	}
	var ms []models.Match
	if err := json.Unmarshal(w.Body.Bytes(), &ms); err != nil {
		t.Fatal(err)
	}
	if len(ms) != 1 || ms[0].ID != mine.ID {
		t.Errorf("expected only creator-1 matches, got %+v", ms)
	}
}

func TestHandleGetMatchWithParticipants(t *testing.T) {
	database := setupMatchTest(t)

	m := createTestMatch(t, "creator-1", createMatchRequest{Title: "With Players"})

	ctx := context.Background()
	if _, err := database.Queries.CreateParticipant(ctx, dbq.CreateParticipantParams{
		MatchID:         m.ID,
		ParticipantName: "Mehmet",
		Team:            sql.NullString{String: "A", Valid: true},
	}); err != nil {
		t.Fatal(err)
	}
	// A profile with the same username carries a star rating.
	profile, err := database.Queries.UpsertProfile(ctx, dbq.UpsertProfileParams{
		ID: "user-mehmet", Username: "Mehmet",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Queries.SetProfileStars(ctx, dbq.SetProfileStarsParams{
		ID: profile.ID, Stars: 7,
	}); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, HandleGetMatch, http.MethodGet, "/api/matches/"+m.ID, m.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get failed: %d %s", w.Code, w.Body.String())
	}
	var got models.Match
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Participants) != 1 {
		t.Fatalf("expected 1 participant, got %d", len(got.Participants))
	}
	p := got.Participants[0]
	if p.ParticipantName != "Mehmet" || p.Stars == nil || *p.Stars != 7 {
		t.Errorf("participant stars not joined: %+v", p)
	}
}

func TestHandleGetMatchNotFound(t *testing.T) {
	setupMatchTest(t)

	w := doJSON(t, HandleGetMatch, http.MethodGet, "/api/matches/nope", "nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleDeleteMatchCreatorOnly(t *testing.T) {
	setupMatchTest(t)

	m := createTestMatch(t, "creator-1", createMatchRequest{Title: "Doomed"})

	w := doJSON(t, HandleDeleteMatch, http.MethodDelete, "/api/matches/"+m.ID, m.ID,
		map[string]string{"X-Creator-Id": "someone-else"}, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-creator, got %d", w.Code)
	}

	w = doJSON(t, HandleDeleteMatch, http.MethodDelete, "/api/matches/"+m.ID, m.ID,
		map[string]string{"X-Creator-Id": "creator-1"}, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for creator, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, HandleGetMatch, http.MethodGet, "/api/matches/"+m.ID, m.ID, nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("match still present after delete: %d", w.Code)
	}
}
