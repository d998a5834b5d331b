package realtime

import (
	"net/http"

	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/hilthontt/tenantwire/internal/infrastructure/ws"
	"github.com/hilthontt/tenantwire/internal/presentation/utils"
)

type Handler struct {
	registry *ws.Registry
	cfg      ws.ClientConfig
	logger   logging.Logger
}

func NewHandler(registry *ws.Registry, cfg ws.ClientConfig, logger logging.Logger) *Handler {
	return &Handler{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// ServeWS upgrades the request and serves the connection until it drops.
// The client starts with no partitions; it joins them with commands.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	actorID := utils.ActorID(r)

	header := http.Header{}
	if actorID != domain.ExternalActor {
		header.Add("Set-Cookie", utils.ActorCookie(actorID).String())
	}

	conn, err := h.registry.Upgrade(w, r, header)
	if err != nil {
		// the upgrader has already replied
		h.logger.Warn(logging.WebSocket, logging.Connection, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ActorID:      actorID,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := ws.NewClient(conn, actorID, h.cfg)
	h.registry.Register(client)

	go client.WritePump()
	client.ReadPump(h.registry)
}
