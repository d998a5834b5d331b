package memberships

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/json"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
)

const ActorParam = "actorId"

type Assigner interface {
	Assign(ctx context.Context, actorID, tenantID string) error
}

type CacheInvalidator interface {
	InvalidateTenant(ctx context.Context, actorID string) error
}

type Handler struct {
	directory Assigner
	cache     CacheInvalidator
	logger    logging.Logger
}

func NewHandler(directory Assigner, cache CacheInvalidator, logger logging.Logger) *Handler {
	return &Handler{
		directory: directory,
		cache:     cache,
		logger:    logger,
	}
}

// AssignHandler moves an actor into a tenant. The cached lookup is dropped so
// the next change of that actor lands in the new partition.
func (h *Handler) AssignHandler(w http.ResponseWriter, r *http.Request) {
	actorID := strings.TrimSpace(chi.URLParam(r, ActorParam))
	if actorID == "" || actorID == domain.ExternalActor {
		json.WriteValidationError(w, errors.New("a named actor is required"))
		return
	}

	var req assignRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	tenantID := strings.TrimSpace(req.TenantID)
	if err := h.directory.Assign(r.Context(), actorID, tenantID); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			json.WriteValidationError(w, errors.New("tenantId is required"))
			return
		}
		h.logger.Error(logging.Postgres, logging.Insert, "assign tenant failed", map[logging.ExtraKey]any{
			logging.ActorID:      actorID,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}

	if err := h.cache.InvalidateTenant(r.Context(), actorID); err != nil {
		// entry expires with its TTL
		h.logger.Warn(logging.Redis, logging.TenantLookup, "tenant cache invalidation failed", map[logging.ExtraKey]any{
			logging.ActorID:      actorID,
			logging.ErrorMessage: err.Error(),
		})
	}

	json.Write(w, http.StatusOK, membershipResponse{ActorID: actorID, TenantID: tenantID})
}
