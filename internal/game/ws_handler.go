package game

import (
	"net/http"

	"github.com/gokatarajesh/trivia-arena/internal/server"
	"github.com/gokatarajesh/trivia-arena/internal/session"
)

// HandleWebSocket upgrades the request and runs the same session protocol
// over text frames. The first frame identifies the client.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	h.Serve(r.Context(), session.NewWSTransport(conn))
}
