package ws

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/tenantwire/internal/domain"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrEmptyPartition = errors.New("partition is required")
)

// Registry is the only owner of partition membership. Rooms are created on
// first join and removed with their last member.
type Registry struct {
	clients map[string]*Client            // connectionID -> client
	rooms   map[string]map[string]*Client // partition -> connectionID -> client
	mu      sync.RWMutex

	upgrader websocket.Upgrader
	logger   logging.Logger
	gauge    prometheus.Gauge
}

type Stats struct {
	Connections int `json:"connections"`
	Partitions  int `json:"partitions"`
	Memberships int `json:"memberships"`
}

type RegistryOption func(*Registry)

// WithConnectionGauge tracks the number of registered connections.
func WithConnectionGauge(g prometheus.Gauge) RegistryOption {
	return func(r *Registry) { r.gauge = g }
}

func WithCheckOrigin(fn func(r *http.Request) bool) RegistryOption {
	return func(r *Registry) { r.upgrader.CheckOrigin = fn }
}

func NewRegistry(logger logging.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upgrade switches req to the websocket protocol. header is added to the 101 response.
func (r *Registry) Upgrade(w http.ResponseWriter, req *http.Request, header http.Header) (*websocket.Conn, error) {
	return r.upgrader.Upgrade(w, req, header)
}

// Register puts c in the CONNECTED state with no partitions.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c.ID]; exists {
		return
	}
	r.clients[c.ID] = c
	if r.gauge != nil {
		r.gauge.Inc()
	}

	r.logger.Debug(logging.WebSocket, logging.Connection, "client registered", map[logging.ExtraKey]any{
		logging.ConnectionID: c.ID,
		logging.ActorID:      c.ActorID,
	})
}

// Join adds partition to the client's set and tells every member of the
// partition that its presence changed. It reports whether the membership is
// new.
func (r *Registry) Join(c *Client, partition string) (bool, error) {
	partition = strings.TrimSpace(partition)
	if partition == "" {
		return false, ErrEmptyPartition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ID]; !ok {
		return false, ErrClientNotFound
	}
	if _, joined := c.partitions[partition]; joined {
		return false, nil
	}

	room, ok := r.rooms[partition]
	if !ok {
		room = make(map[string]*Client)
		r.rooms[partition] = room
	}
	room[c.ID] = c
	c.partitions[partition] = domain.NewMember(c.ID, c.ActorID)

	r.logger.Debug(logging.WebSocket, logging.Partition, "client joined partition", map[logging.ExtraKey]any{
		logging.ConnectionID: c.ID,
		logging.ActorID:      c.ActorID,
		logging.PartitionKey: partition,
	})

	r.deliver(room, NewPartitionChanged(partition, len(room)))
	return true, nil
}

// Leave removes the membership and tears the room down when it empties.
func (r *Registry) Leave(c *Client, partition string) bool {
	partition = strings.TrimSpace(partition)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.leaveLocked(c, partition) {
		return false
	}

	r.logger.Debug(logging.WebSocket, logging.Partition, "client left partition", map[logging.ExtraKey]any{
		logging.ConnectionID: c.ID,
		logging.PartitionKey: partition,
	})
	return true
}

// Unregister drops the client from every partition and closes its send
// queue. A reconnect starts over with an empty partition set.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ID]; !ok {
		return
	}

	for partition := range c.partitions {
		r.leaveLocked(c, partition)
	}

	delete(r.clients, c.ID)
	close(c.send)
	if r.gauge != nil {
		r.gauge.Dec()
	}

	r.logger.Debug(logging.WebSocket, logging.Connection, "client unregistered", map[logging.ExtraKey]any{
		logging.ConnectionID: c.ID,
		logging.ActorID:      c.ActorID,
	})
}

func (r *Registry) leaveLocked(c *Client, partition string) bool {
	if _, joined := c.partitions[partition]; !joined {
		return false
	}
	delete(c.partitions, partition)

	room := r.rooms[partition]
	delete(room, c.ID)
	if len(room) == 0 {
		delete(r.rooms, partition)
		return true
	}

	r.deliver(room, NewPartitionChanged(partition, len(room)))
	return true
}

// Emit fans msg out to the members of partition and returns how many
// accepted it. Members with a full buffer miss the message. An unknown
// partition is a no-op.
func (r *Registry) Emit(partition string, msg *Envelope) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[partition]
	if !ok {
		return 0
	}
	return r.deliver(room, msg)
}

// SendTo queues msg for one client.
func (r *Registry) SendTo(c *Client, msg *Envelope) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.clients[c.ID]; !ok {
		return false
	}
	return r.trySend(c, msg)
}

// deliver must run under r.mu, read or write.
func (r *Registry) deliver(room map[string]*Client, msg *Envelope) int {
	delivered := 0
	for _, c := range room {
		if r.trySend(c, msg) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) trySend(c *Client, msg *Envelope) bool {
	select {
	case c.send <- msg:
		return true
	default:
		r.logger.Warn(logging.WebSocket, logging.Connection, "client buffer full, dropping message", map[logging.ExtraKey]any{
			logging.ConnectionID: c.ID,
			logging.PartitionKey: msg.Partition,
			"type":               msg.Type,
		})
		return false
	}
}

// MembersOf lists the members of partition, oldest first.
func (r *Registry) MembersOf(partition string) []domain.Member {
	r.mu.RLock()
	room := r.rooms[partition]
	members := make([]domain.Member, 0, len(room))
	for _, c := range room {
		members = append(members, c.partitions[partition])
	}
	r.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].ConnectionID < members[j].ConnectionID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members
}

// PartitionsOf returns the partitions c currently belongs to.
func (r *Registry) PartitionsOf(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(c.partitions))
	for p := range c.partitions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Connections: len(r.clients), Partitions: len(r.rooms)}
	for _, room := range r.rooms {
		s.Memberships += len(room)
	}
	return s
}
