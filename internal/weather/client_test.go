package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCurrentWithoutKey(t *testing.T) {
	c := NewClient("")
	_, err := c.Current(context.Background(), 41.0, 29.0)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCurrentParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("appid"); got != "test-key" {
			t.Errorf("missing api key in request, got %q", got)
		}
		if got := r.URL.Query().Get("units"); got != "metric" {
			t.Errorf("expected metric units, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"weather": [{"description": "light rain", "icon": "10d"}],
			"main": {"temp": 17.4, "feels_like": 16.9, "humidity": 82},
			"wind": {"speed": 4.1}
		}`))
	}))
	defer server.Close()

	c := NewClient("test-key").WithBaseURL(server.URL)
	got, err := c.Current(context.Background(), 41.0, 29.0)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if got.Description != "light rain" || got.Icon != "10d" {
		t.Errorf("unexpected conditions: %+v", got)
	}
	if got.TempC != 17.4 || got.Humidity != 82 || got.WindSpeed != 4.1 {
		t.Errorf("unexpected numbers: %+v", got)
	}
}

func TestCurrentNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient("bad-key").WithBaseURL(server.URL)
	if _, err := c.Current(context.Background(), 41.0, 29.0); err == nil {
		t.Error("expected error for non-200 response")
	}
}
