package matchapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oguzcanoz/halisaha/internal/weather"
)

func TestHandleMatchWeatherWithoutCoordinates(t *testing.T) {
	setupMatchTest(t)

	m := createTestMatch(t, "creator-1", createMatchRequest{Title: "No Coords"})

	w := doJSON(t, HandleMatchWeather, http.MethodGet, "/api/matches/"+m.ID+"/weather", m.ID, nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without coordinates, got %d", w.Code)
	}
}

func TestHandleMatchWeatherUpstreamFailure(t *testing.T) {
	setupMatchTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()
	weatherClient = weather.NewClient("test-key").WithBaseURL(server.URL)

	lat, lng := 41.0, 29.0
	m := createTestMatch(t, "creator-1", createMatchRequest{
		Title: "Stormy Game", LocationLat: &lat, LocationLng: &lng,
	})

	w := doJSON(t, HandleMatchWeather, http.MethodGet, "/api/matches/"+m.ID+"/weather", m.ID, nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 on upstream failure, got %d", w.Code)
	}
}

func TestHandleMatchWeatherNotConfigured(t *testing.T) {
	setupMatchTest(t)

	lat, lng := 41.0, 29.0
	m := createTestMatch(t, "creator-1", createMatchRequest{
		Title: "With Coords", LocationLat: &lat, LocationLng: &lng,
	})

	w := doJSON(t, HandleMatchWeather, http.MethodGet, "/api/matches/"+m.ID+"/weather", m.ID, nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without weather client, got %d", w.Code)
	}
}

func TestHandleMatchWeatherProxiesConditions(t *testing.T) {
	setupMatchTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"weather":[{"description":"clear sky","icon":"01d"}],"main":{"temp":22.5,"feels_like":22.0,"humidity":40},"wind":{"speed":2.0}}`))
	}))
	defer server.Close()
	weatherClient = weather.NewClient("test-key").WithBaseURL(server.URL)

	lat, lng := 41.0, 29.0
	m := createTestMatch(t, "creator-1", createMatchRequest{
		Title: "Sunny Game", LocationLat: &lat, LocationLng: &lng,
	})

	w := doJSON(t, HandleMatchWeather, http.MethodGet, "/api/matches/"+m.ID+"/weather", m.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("weather failed: %d %s", w.Code, w.Body.String())
	}
	var got weather.Conditions
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Description != "clear sky" || got.TempC != 22.5 {
		t.Errorf("unexpected conditions: %+v", got)
	}
}

func TestHandleMatchMap(t *testing.T) {
	setupMatchTest(t)
	mapsAPIKey = "maps-key"

	lat, lng := 41.0, 29.0
	m := createTestMatch(t, "creator-1", createMatchRequest{
		Title: "Mapped Game", LocationLat: &lat, LocationLng: &lng,
	})

	w := doJSON(t, HandleMatchMap, http.MethodGet, "/api/matches/"+m.ID+"/map", m.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("map failed: %d %s", w.Code, w.Body.String())
	}
	var got mapResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Lat != 41.0 || got.Lng != 29.0 {
		t.Errorf("unexpected coordinates: %+v", got)
	}
	if !strings.Contains(got.EmbedURL, "maps-key") {
		t.Errorf("embed url missing api key: %q", got.EmbedURL)
	}
}

func TestHandleMatchMapNotConfigured(t *testing.T) {
	setupMatchTest(t)

	lat, lng := 41.0, 29.0
	m := createTestMatch(t, "creator-1", createMatchRequest{
		Title: "Mapped Game", LocationLat: &lat, LocationLng: &lng,
	})

	w := doJSON(t, HandleMatchMap, http.MethodGet, "/api/matches/"+m.ID+"/map", m.ID, nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without maps key, got %d", w.Code)
	}
}
