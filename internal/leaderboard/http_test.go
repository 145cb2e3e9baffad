package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/trivia-arena/internal/round"
	httperrors "github.com/gokatarajesh/trivia-arena/pkg/http/errors"
)

type staticSource struct {
	standings []round.Standing
	status    round.Status
}

func (s staticSource) Leaderboard() []round.Standing { return s.standings }
func (s staticSource) Status() round.Status          { return s.status }

type response struct {
	Source string  `json:"source"`
	Top    []Entry `json:"top"`
	Round  struct {
		Active bool   `json:"active"`
		QID    string `json:"qid"`
		Issued int    `json:"issued"`
		Total  int    `json:"total"`
	} `json:"round"`
	RetrievedAt string `json:"retrievedAt"`
}

func liveSource() staticSource {
	return staticSource{
		standings: []round.Standing{
			{Player: "bob", Score: 150, Wins: 1, Rounds: 2},
			{Player: "amy", Score: 100, Wins: 1, Rounds: 2},
			{Player: "cid", Score: 0, Rounds: 1},
		},
		status: round.Status{Active: true, QID: "q3", Issued: 3, Total: 5, Participants: 3},
	}
}

func get(t *testing.T, h *HTTPHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleGet(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandleGetLive(t *testing.T) {
	h := NewHTTPHandler(liveSource(), nil, zerolog.Nop())

	rec := get(t, h, "/v1/leaderboard?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, SourceLive, body.Source)
	require.Len(t, body.Top, 2)
	assert.Equal(t, Entry{Rank: 1, Player: "bob", Score: 150, Wins: 1, Rounds: 2}, body.Top[0])
	assert.Equal(t, 2, body.Top[1].Rank)
	assert.True(t, body.Round.Active)
	assert.Equal(t, "q3", body.Round.QID)
	assert.Equal(t, 5, body.Round.Total)
	assert.NotEmpty(t, body.RetrievedAt)
}

func TestHandleGetRejectsBadInput(t *testing.T) {
	h := NewHTTPHandler(liveSource(), nil, zerolog.Nop())

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"zero limit", "/v1/leaderboard?limit=0", http.StatusBadRequest, httperrors.ErrCodeInvalidRequest},
		{"non numeric limit", "/v1/leaderboard?limit=ten", http.StatusBadRequest, httperrors.ErrCodeInvalidRequest},
		{"unknown source", "/v1/leaderboard?source=postgres", http.StatusBadRequest, httperrors.ErrCodeUnknownSource},
		{"redis disabled", "/v1/leaderboard?source=redis", http.StatusServiceUnavailable, httperrors.ErrCodeServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestHandleGetMethodNotAllowed(t *testing.T) {
	h := NewHTTPHandler(liveSource(), nil, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.HandleGet(rec, httptest.NewRequest(http.MethodPost, "/v1/leaderboard", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}

func TestHandleGetRedis(t *testing.T) {
	svc, mr, _ := newTestService(t, ServiceOptions{})
	require.NoError(t, svc.RecordRound(context.Background(), sampleResult()))
	h := NewHTTPHandler(liveSource(), svc, zerolog.Nop())

	rec := get(t, h, "/v1/leaderboard?source=redis")
	require.Equal(t, http.StatusOK, rec.Code)
	var body response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, SourceRedis, body.Source)
	require.Len(t, body.Top, 3)
	assert.Equal(t, "bob", body.Top[0].Player)

	mr.Close()
	rec = get(t, h, "/v1/leaderboard?source=redis")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleGetRedisIgnoresCanceledRequest(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceOptions{})
	require.NoError(t, svc.RecordRound(context.Background(), sampleResult()))
	h := NewHTTPHandler(liveSource(), svc, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboard?source=redis", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.HandleGet(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Top, 3)
	assert.Equal(t, "bob", body.Top[0].Player)
}
