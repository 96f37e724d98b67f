package http

import (
	"net/http"

	"github.com/gymslim/portal/pkg/httpx"
)

// handleHome backs the portal landing page and, as the mux's fallback
// route, puts every otherwise-unrouted page behind the full gate stack.
func (rt *Router) handleHome(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": s.User})
}
