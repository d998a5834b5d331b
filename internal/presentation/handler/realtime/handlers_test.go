package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/hilthontt/tenantwire/internal/infrastructure/ws"
	"github.com/hilthontt/tenantwire/internal/presentation/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Type      string          `json:"type"`
	Partition string          `json:"partition"`
	Data      json.RawMessage `json:"data"`
}

func TestServeWS_IdentifiesActor(t *testing.T) {
	reg := ws.NewRegistry(logging.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(reg, ws.DefaultClientConfig(), logging.NewNop()).ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Set(utils.HeaderActorID, "u1")

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, utils.CookieActorID, cookies[0].Name)
	assert.Equal(t, utils.ActorCookie("u1").Value, cookies[0].Value)

	require.NoError(t, conn.WriteJSON(ws.Envelope{Type: ws.JoinCommand, Partition: "t1"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var env envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, ws.PartitionChanged, env.Type)

	members := reg.MembersOf("t1")
	require.Len(t, members, 1)
	assert.Equal(t, "u1", members[0].ActorID)
}

func TestServeWS_RejectsPlainHTTP(t *testing.T) {
	logger := logging.NewMemoryLogger()
	h := NewHandler(ws.NewRegistry(logging.NewNop()), ws.DefaultClientConfig(), logger)

	rec := httptest.NewRecorder()
	h.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, logger.Find(logging.LevelWarn, logging.Connection), 1)
}
