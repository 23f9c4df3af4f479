package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coursetalk/internal/api"
	"coursetalk/internal/forum/sqlstore"
	"coursetalk/internal/search"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "forum.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := sqlstore.New(db)
	require.NoError(t, err)
	r := gin.New()
	RegisterRoutes(r, api.NewService(store, search.NewDisabled()))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestThreadLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/users", gin.H{
		"id": "1", "username": "alice", "email": "alice@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/threads", gin.H{
		"title": "Hello", "body": "first", "course_id": "course-1", "user_id": "1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var thread struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &thread))
	assert.Equal(t, "Hello", thread.Title)
	require.NotEmpty(t, thread.ID)

	w = doJSON(t, r, http.MethodGet, "/api/v1/threads/"+thread.ID+"?user_id=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/threads?course_id=course-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Collection []json.RawMessage `json:"collection"`
		NumPages   int               `json:"num_pages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Collection, 1)
	assert.Equal(t, 1, page.NumPages)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/threads/"+thread.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/threads/"+thread.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/threads/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)

	// Unknown query parameter hits the listing allow-list.
	w = doJSON(t, r, http.MethodGet, "/api/v1/threads?course_id=c&bogus=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Conflicting usernames map to 409.
	doJSON(t, r, http.MethodPost, "/api/v1/users", gin.H{"id": "1", "username": "alice"})
	doJSON(t, r, http.MethodPost, "/api/v1/users", gin.H{"id": "2", "username": "bob"})
	w = doJSON(t, r, http.MethodPut, "/api/v1/users/2", gin.H{"id": "2", "username": "alice"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVoteAndFlagRoutes(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/v1/users", gin.H{"id": "1", "username": "alice"})
	doJSON(t, r, http.MethodPost, "/api/v1/users", gin.H{"id": "2", "username": "bob"})

	w := doJSON(t, r, http.MethodPost, "/api/v1/threads", gin.H{
		"title": "Votable", "body": "b", "course_id": "course-1", "user_id": "1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var thread struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &thread))

	w = doJSON(t, r, http.MethodPut, "/api/v1/threads/"+thread.ID+"/votes", gin.H{
		"user_id": "2", "value": "up",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var voted struct {
		Votes struct {
			Point int `json:"point"`
		} `json:"votes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &voted))
	assert.Equal(t, 1, voted.Votes.Point)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/threads/"+thread.ID+"/votes?user_id=2", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/v1/threads/"+thread.ID+"/abuse_flags", gin.H{
		"user_id": "2",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var flagged struct {
		AbuseFlaggers []string `json:"abuse_flaggers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &flagged))
	assert.Equal(t, []string{"2"}, flagged.AbuseFlaggers)
}
