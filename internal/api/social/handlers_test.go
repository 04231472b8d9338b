package social

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/models"
	"github.com/oguzcanoz/halisaha/internal/testutil"
)

func setupSocialTest(t *testing.T) {
	t.Helper()
	database := testutil.NewTestDB(t)
	queries = database.Queries
	hub = nil
	t.Cleanup(func() {
		queries = nil
		queriesOnce = sync.Once{}
	})
}

func makeMatch(t *testing.T, creatorID string) dbq.Match {
	t.Helper()
	m, err := queries.CreateMatch(context.Background(), dbq.CreateMatchParams{
		Title:     sql.NullString{String: "Friday Kickabout", Valid: true},
		CreatorID: sql.NullString{String: creatorID, Valid: true},
	})
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	return m
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target, pathID string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCreateAndListComments(t *testing.T) {
	setupSocialTest(t)
	m := makeMatch(t, "user-1")

	rec := doJSON(t, HandleCreateComment, http.MethodPost, "/api/matches/"+m.ID+"/comments", m.ID,
		map[string]string{"X-Creator-Id": "user-1"},
		map[string]string{"username": "Mehmet", "commentText": "See you at the pitch"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create comment status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created models.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode comment: %v", err)
	}
	if created.Username != "Mehmet" || created.CommentText != "See you at the pitch" {
		t.Errorf("unexpected comment %+v", created)
	}
	if created.UserID == nil || *created.UserID != "user-1" {
		t.Errorf("comment user id = %v, want user-1", created.UserID)
	}

	rec = doJSON(t, HandleCreateComment, http.MethodPost, "/api/matches/"+m.ID+"/comments", m.ID, nil,
		map[string]string{"username": "Ayse", "commentText": "Count me in"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("second comment status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, HandleListComments, http.MethodGet, "/api/matches/"+m.ID+"/comments", m.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list comments status = %d", rec.Code)
	}
	var listed []models.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode comments: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("got %d comments, want 2", len(listed))
	}
	if listed[0].Username != "Mehmet" || listed[1].Username != "Ayse" {
		t.Errorf("comments out of order: %s then %s", listed[0].Username, listed[1].Username)
	}

	activities, err := queries.ListActivities(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListActivities: %v", err)
	}
	if len(activities) != 2 || activities[0].ActivityType != "comment_added" {
		t.Errorf("expected comment_added activities, got %+v", activities)
	}
}

func TestCreateCommentStripsScriptTags(t *testing.T) {
	setupSocialTest(t)
	m := makeMatch(t, "user-1")

	rec := doJSON(t, HandleCreateComment, http.MethodPost, "/api/matches/"+m.ID+"/comments", m.ID, nil,
		map[string]string{"username": "Mehmet", "commentText": "Nice pitch <script>alert(1)</script>here"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.CommentText != "Nice pitch here" {
		t.Errorf("comment text = %q, want script stripped", created.CommentText)
	}
}

func TestCreateCommentValidation(t *testing.T) {
	setupSocialTest(t)
	m := makeMatch(t, "user-1")

	cases := []struct {
		name string
		body map[string]string
	}{
		{"empty username", map[string]string{"username": "", "commentText": "hi"}},
		{"short username", map[string]string{"username": "a", "commentText": "hi"}},
		{"empty text", map[string]string{"username": "Mehmet", "commentText": ""}},
		{"whitespace text", map[string]string{"username": "Mehmet", "commentText": "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, HandleCreateComment, http.MethodPost, "/api/matches/"+m.ID+"/comments", m.ID, nil, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
		})
	}

	rec := doJSON(t, HandleCreateComment, http.MethodPost, "/api/matches/missing/comments", "missing", nil,
		map[string]string{"username": "Mehmet", "commentText": "hello"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing match status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestUpdateComment(t *testing.T) {
	setupSocialTest(t)
	m := makeMatch(t, "user-1")

	row, err := queries.CreateComment(context.Background(), dbq.CreateCommentParams{
		MatchID:     m.ID,
		UserID:      sql.NullString{String: "user-2", Valid: true},
		Username:    "Mehmet",
		CommentText: "original",
	})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	rec := doJSON(t, HandleUpdateComment, http.MethodPut, "/api/comments/"+row.ID, row.ID,
		map[string]string{"X-Creator-Id": "user-2"},
		map[string]string{"commentText": "edited"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	var updated models.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.CommentText != "edited" {
		t.Errorf("comment text = %q, want edited", updated.CommentText)
	}

	// Someone else cannot edit it.
	rec = doJSON(t, HandleUpdateComment, http.MethodPut, "/api/comments/"+row.ID, row.ID,
		map[string]string{"X-Creator-Id": "user-3"},
		map[string]string{"commentText": "hijacked"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("impostor update status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = doJSON(t, HandleUpdateComment, http.MethodPut, "/api/comments/missing", "missing",
		map[string]string{"X-Creator-Id": "user-2"},
		map[string]string{"commentText": "edited"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing comment status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteComment(t *testing.T) {
	setupSocialTest(t)
	m := makeMatch(t, "user-1")

	row, err := queries.CreateComment(context.Background(), dbq.CreateCommentParams{
		MatchID:     m.ID,
		UserID:      sql.NullString{String: "user-2", Valid: true},
		Username:    "Mehmet",
		CommentText: "to be removed",
	})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	rec := doJSON(t, HandleDeleteComment, http.MethodDelete, "/api/comments/"+row.ID, row.ID,
		map[string]string{"X-Creator-Id": "user-3"}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("impostor delete status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = doJSON(t, HandleDeleteComment, http.MethodDelete, "/api/comments/"+row.ID, row.ID,
		map[string]string{"X-Creator-Id": "user-2"}, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rows, err := queries.ListCommentsByMatch(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("ListCommentsByMatch: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("comment still present after delete: %+v", rows)
	}
}

func TestSetReactionReplacesPrevious(t *testing.T) {
	setupSocialTest(t)
	m := makeMatch(t, "user-1")

	rec := doJSON(t, HandleSetReaction, http.MethodPost, "/api/matches/"+m.ID+"/reactions", m.ID,
		map[string]string{"X-Creator-Id": "user-2"},
		map[string]string{"username": "Mehmet", "reactionType": "interested"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set reaction status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, HandleSetReaction, http.MethodPost, "/api/matches/"+m.ID+"/reactions", m.ID,
		map[string]string{"X-Creator-Id": "user-2"},
		map[string]string{"username": "Mehmet", "reactionType": "going"})
	if rec.Code != http.StatusOK {
		t.Fatalf("replace reaction status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, HandleListReactions, http.MethodGet, "/api/matches/"+m.ID+"/reactions", m.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list reactions status = %d", rec.Code)
	}
	var listed []models.Reaction
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode reactions: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("got %d reactions, want 1", len(listed))
	}
	if listed[0].ReactionType != "going" {
		t.Errorf("reaction type = %q, want going", listed[0].ReactionType)
	}
}

func TestSetReactionValidation(t *testing.T) {
	setupSocialTest(t)
	m := makeMatch(t, "user-1")

	rec := doJSON(t, HandleSetReaction, http.MethodPost, "/api/matches/"+m.ID+"/reactions", m.ID,
		map[string]string{"X-Creator-Id": "user-2"},
		map[string]string{"username": "Mehmet", "reactionType": "love"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad type status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, HandleSetReaction, http.MethodPost, "/api/matches/"+m.ID+"/reactions", m.ID, nil,
		map[string]string{"username": "Mehmet", "reactionType": "like"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, HandleSetReaction, http.MethodPost, "/api/matches/missing/reactions", "missing",
		map[string]string{"X-Creator-Id": "user-2"},
		map[string]string{"username": "Mehmet", "reactionType": "like"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing match status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestClearReaction(t *testing.T) {
	setupSocialTest(t)
	m := makeMatch(t, "user-1")

	rec := doJSON(t, HandleSetReaction, http.MethodPost, "/api/matches/"+m.ID+"/reactions", m.ID,
		map[string]string{"X-Creator-Id": "user-2"},
		map[string]string{"username": "Mehmet", "reactionType": "like"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set reaction status = %d", rec.Code)
	}

	rec = doJSON(t, HandleClearReaction, http.MethodDelete, "/api/matches/"+m.ID+"/reactions", m.ID,
		map[string]string{"X-Creator-Id": "user-2"}, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	// Clearing again finds nothing.
	rec = doJSON(t, HandleClearReaction, http.MethodDelete, "/api/matches/"+m.ID+"/reactions", m.ID,
		map[string]string{"X-Creator-Id": "user-2"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second clear status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListActivitiesLimit(t *testing.T) {
	setupSocialTest(t)

	for i := 0; i < 5; i++ {
		err := queries.CreateActivity(context.Background(), dbq.CreateActivityParams{
			ActivityType: "match_created",
			Username:     "Mehmet",
			Description:  "Mehmet created a match",
		})
		if err != nil {
			t.Fatalf("CreateActivity: %v", err)
		}
	}

	rec := doJSON(t, HandleListActivities, http.MethodGet, "/api/activities?limit=3", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list activities status = %d", rec.Code)
	}
	var listed []models.Activity
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode activities: %v", err)
	}
	if len(listed) != 3 {
		t.Errorf("got %d activities, want 3", len(listed))
	}

	rec = doJSON(t, HandleListActivities, http.MethodGet, "/api/activities?limit=zero", "", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = doJSON(t, HandleListActivities, http.MethodGet, "/api/activities", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("default limit status = %d", rec.Code)
	}
}
