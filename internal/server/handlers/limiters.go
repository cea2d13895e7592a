package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/guardianhq/guardian/internal/errors"
	"github.com/guardianhq/guardian/internal/limiter"
)

// LimitersResponse lists every registered limiter.
type LimitersResponse struct {
	Policy   limiter.GlobalPolicy  `json:"global_policy"`
	SafeMode limiter.SafeModeState `json:"safe_mode"`
	Limiters []limiter.Info        `json:"limiters"`
}

// LimitersHandler exposes a limiter registry read-only.
type LimitersHandler struct {
	registry *limiter.Registry
}

func NewLimitersHandler(reg *limiter.Registry) *LimitersHandler {
	return &LimitersHandler{registry: reg}
}

// List handles GET /v1/limiters.
func (h *LimitersHandler) List(w http.ResponseWriter, r *http.Request) {
	coord := h.registry.Coordinator()
	writeJSON(w, http.StatusOK, LimitersResponse{
		Policy:   coord.Policy(),
		SafeMode: coord.SafeMode().State(),
		Limiters: h.registry.Snapshot(),
	})
}

// Get handles GET /v1/limiters/{name}.
func (h *LimitersHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	l, ok := h.registry.Get(name)
	if !ok {
		respondWithError(w, r, apperrors.NewNotFoundError(fmt.Sprintf("limiter %q is not registered", name)))
		return
	}
	writeJSON(w, http.StatusOK, l.Info())
}

// LimitersChecker reports degraded health while safe mode throttles the
// process.
type LimitersChecker struct {
	coord *limiter.Coordinator
}

func NewLimitersChecker(coord *limiter.Coordinator) *LimitersChecker {
	return &LimitersChecker{coord: coord}
}

func (c *LimitersChecker) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st := c.coord.SafeMode().State()
	if st.Enabled {
		return fmt.Errorf("%w: safe mode caps rates at %g/s", ErrDegraded, st.Rate)
	}
	return nil
}
