package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"golang.org/x/time/rate"
)

type ClientConfig struct {
	SendBuffer     int
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// CommandsPerWindow commands may arrive per CommandWindow on one
	// connection. Zero disables throttling.
	CommandsPerWindow int
	CommandWindow     time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBuffer:     64,
		PingPeriod:     54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,

		CommandsPerWindow: 30,
		CommandWindow:     10 * time.Second,
	}
}

// newCommandLimiter refills one command every CommandWindow/CommandsPerWindow
// and allows a full window as burst.
func newCommandLimiter(cfg ClientConfig) *rate.Limiter {
	if cfg.CommandsPerWindow <= 0 || cfg.CommandWindow <= 0 {
		return nil
	}
	every := cfg.CommandWindow / time.Duration(cfg.CommandsPerWindow)
	return rate.NewLimiter(rate.Every(every), cfg.CommandsPerWindow)
}

// Client is one websocket connection. Its partition set is owned by the
// Registry and only touched under the registry lock.
type Client struct {
	ID      string
	ActorID string

	conn       *connWrapper
	send       chan *Envelope
	partitions map[string]domain.Member
	cfg        ClientConfig
	limiter    *rate.Limiter
}

func NewClient(conn *websocket.Conn, actorID string, cfg ClientConfig) *Client {
	c := newClient(uuid.NewString(), actorID, cfg.SendBuffer)
	c.conn = newConnWrapper(conn, cfg.WriteWait)
	c.cfg = cfg
	c.limiter = newCommandLimiter(cfg)
	return c
}

func newClient(id, actorID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		ID:         id,
		ActorID:    actorID,
		send:       make(chan *Envelope, buffer), // buffered so slow clients do not stall fan-out
		partitions: make(map[string]domain.Member),
	}
}

// ReadPump handles commands until the connection drops, then unregisters
// the client.
func (c *Client) ReadPump(reg *Registry) {
	defer func() {
		reg.Unregister(c)
		_ = c.conn.Close()
	}()

	conn := c.conn.conn
	conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				reg.logger.Warn(logging.WebSocket, logging.Connection, "websocket read error", map[logging.ExtraKey]any{
					logging.ConnectionID: c.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		var cmd Envelope
		if err := json.Unmarshal(raw, &cmd); err != nil {
			reg.SendTo(c, NewError("", CodeBadRequest, "malformed message"))
			continue
		}

		if c.limiter != nil && !c.limiter.Allow() {
			reg.SendTo(c, NewRateLimited(cmd.Partition))
			continue
		}

		reg.HandleCommand(c, cmd)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
// It exits when the registry closes the queue or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
