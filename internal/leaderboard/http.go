package leaderboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gokatarajesh/trivia-arena/internal/round"
	httperrors "github.com/gokatarajesh/trivia-arena/pkg/http/errors"
)

const fetchTimeout = 2 * time.Second

// Sources for GET /v1/leaderboard.
const (
	SourceLive  = "live"
	SourceRedis = "redis"
)

// LiveSource exposes the in-memory standings. *round.Machine implements it.
type LiveSource interface {
	Leaderboard() []round.Standing
	Status() round.Status
}

// HTTPHandler exposes the leaderboard over REST.
type HTTPHandler struct {
	live   LiveSource
	svc    *Service
	sf     singleflight.Group
	logger zerolog.Logger
}

type roundStatus struct {
	Active       bool   `json:"active"`
	QID          string `json:"qid,omitempty"`
	Issued       int    `json:"issued"`
	Total        int    `json:"total"`
	Participants int    `json:"participants"`
}

// NewHTTPHandler constructs a leaderboard HTTP handler. svc may be nil when
// Redis export is disabled.
func NewHTTPHandler(live LiveSource, svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		live:   live,
		svc:    svc,
		logger: logger.With().Str("component", "leaderboard_http").Logger(),
	}
}

// HandleGet responds with the current leaderboard.
// Route: GET /v1/leaderboard?limit=10&source=live|redis
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondMethodNotAllowed(w, http.MethodGet)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = SourceLive
	}

	var top []Entry
	switch source {
	case SourceLive:
		top = toEntries(h.live.Leaderboard())
		if limit > 0 && len(top) > limit {
			top = top[:limit]
		}
	case SourceRedis:
		if h.svc == nil {
			httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "leaderboard export is disabled")
			return
		}
		// shared by concurrent polls, detached from the first caller's cancellation
		v, err, _ := h.sf.Do("top:"+strconv.Itoa(limit), func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), fetchTimeout)
			defer cancel()
			return h.svc.Top(ctx, limit)
		})
		if err != nil {
			h.logger.Warn().Err(err).Msg("redis leaderboard fetch failed")
			httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeLeaderboardFetchFailed, "failed to fetch leaderboard")
			return
		}
		top = v.([]Entry)
	default:
		httperrors.RespondBadRequest(w, httperrors.ErrCodeUnknownSource, "source must be live or redis")
		return
	}

	st := h.live.Status()
	resp := map[string]interface{}{
		"source": source,
		"top":    top,
		"round": roundStatus{
			Active:       st.Active,
			QID:          st.QID,
			Issued:       st.Issued,
			Total:        st.Total,
			Participants: st.Participants,
		},
		"retrievedAt": time.Now().UTC().Format(time.RFC3339),
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
