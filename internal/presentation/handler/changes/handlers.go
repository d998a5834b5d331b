package changes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hilthontt/tenantwire/internal/application/changefeed"
	"github.com/hilthontt/tenantwire/internal/infrastructure/json"
	"github.com/hilthontt/tenantwire/internal/presentation/utils"
)

var errQueueFull = errors.New("change queue is full")

type Dispatcher interface {
	Dispatch(change changefeed.Change) bool
}

type Handler struct {
	dispatcher Dispatcher
}

func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// CreateChangeHandler queues a change for recording and broadcast. The actor
// defaults to the caller when the body does not name one.
func (h *Handler) CreateChangeHandler(w http.ResponseWriter, r *http.Request) {
	var req createChangeRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" {
		actorID = utils.ActorID(r)
	}

	accepted := h.dispatcher.Dispatch(changefeed.Change{
		ActorID:           actorID,
		Action:            req.Action,
		EntityType:        strings.TrimSpace(req.EntityType),
		EntityID:          strings.TrimSpace(req.EntityID),
		Details:           req.Details,
		PreviousState:     req.PreviousState,
		Changes:           req.Changes,
		PartitionOverride: req.PartitionOverride,
	})
	if !accepted {
		w.Header().Set("Retry-After", "1")
		json.WriteError(w, http.StatusServiceUnavailable, errQueueFull, "Change queue is full, retry later")
		return
	}

	json.Write(w, http.StatusAccepted, createChangeResponse{Status: "accepted"})
}
