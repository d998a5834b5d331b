package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/hilthontt/tenantwire/internal/infrastructure/json"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
)

var startTime = time.Now()

const checkTimeout = 2 * time.Second

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Handler struct {
	checks map[string]Check
	logger logging.Logger
}

func NewHandler(logger logging.Logger) *Handler {
	return &Handler{
		checks: make(map[string]Check),
		logger: logger,
	}
}

// AddCheck registers a readiness dependency. Not safe to call after the
// server started.
func (h *Handler) AddCheck(name string, check Check) {
	h.checks[name] = check
}

// GetHealth reports liveness only.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	json.Write(w, http.StatusOK, newResponse("ok"))
}

// GetReady runs every registered check and answers 503 when one fails.
func (h *Handler) GetReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := newResponse("ok")
	status := http.StatusOK
	if len(names) > 0 {
		resp.Checks = make(map[string]string, len(names))
	}

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn(logging.General, logging.ExternalService, "readiness check failed", map[logging.ExtraKey]any{
				"check":              name,
				logging.ErrorMessage: err.Error(),
			})
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	json.Write(w, status, resp)
}

func newResponse(status string) healthResponse {
	return healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}
}
