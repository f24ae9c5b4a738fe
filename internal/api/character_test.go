package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-character-chat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCharacter(t *testing.T) {
	engine := newTestEngine(newStubCharacterRepo(), &stubMessageRepo{}, &scriptedStreamer{})

	body := `{"name":"Captain Flint","description":"An old sea captain","personality":"cheerful pirate","user_id":"user-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/characters", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Character
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Captain Flint", created.Name)
	assert.Equal(t, "user-1", created.UserID)
}

func TestCreateCharacterMissingFields(t *testing.T) {
	engine := newTestEngine(newStubCharacterRepo(), &stubMessageRepo{}, &scriptedStreamer{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/characters", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestGetCharacter(t *testing.T) {
	engine := newTestEngine(newStubCharacterRepo(seaDog()), &stubMessageRepo{}, &scriptedStreamer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/characters/1", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var character models.Character
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &character))
	assert.Equal(t, "Captain Flint", character.Name)
}

func TestGetCharacterNotFound(t *testing.T) {
	engine := newTestEngine(newStubCharacterRepo(), &stubMessageRepo{}, &scriptedStreamer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/characters/123", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCharacterInvalidID(t *testing.T) {
	engine := newTestEngine(newStubCharacterRepo(), &stubMessageRepo{}, &scriptedStreamer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/characters/not-a-number", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCharactersRequiresUserID(t *testing.T) {
	engine := newTestEngine(newStubCharacterRepo(seaDog()), &stubMessageRepo{}, &scriptedStreamer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/characters", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListCharactersByUser(t *testing.T) {
	other := &models.Character{ID: 2, Name: "Seer", Description: "d", Personality: "mystic", UserID: "user-2"}
	engine := newTestEngine(newStubCharacterRepo(seaDog(), other), &stubMessageRepo{}, &scriptedStreamer{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/characters?user_id=user-1", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var characters []models.Character
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &characters))
	require.Len(t, characters, 1)
	assert.Equal(t, "Captain Flint", characters[0].Name)
}
