//go:build integration

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/shopstream/fanout"
	"github.com/c360/shopstream/natsclient"
	"github.com/c360/shopstream/protocol"
	"github.com/c360/shopstream/realtime"
	"github.com/c360/shopstream/rpc"
	"github.com/c360/shopstream/worker"
	"github.com/c360/shopstream/worker/backends"
)

// connectClient opens an independent broker connection, the way every
// gateway and worker replica holds its own in production.
func connectClient(t *testing.T, url string) *natsclient.Client {
	t.Helper()

	nc, err := natsclient.NewClient(url,
		natsclient.WithConnectAttempts(1),
		natsclient.WithMaxReconnects(0),
		natsclient.WithHealthInterval(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, nc.Connect(ctx))
	t.Cleanup(func() { _ = nc.Close(context.Background()) })

	return nc
}

// runWorker starts a worker replica and stops it on test cleanup.
func runWorker(t *testing.T, w *worker.Worker) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Log("worker did not stop in time")
		}
	})
}

func startUserWorker(t *testing.T, url string) {
	t.Helper()

	w, err := worker.New(connectClient(t, url), worker.DefaultUserConfig(), nil, nil)
	require.NoError(t, err)

	users := backends.NewUserStore()
	w.Handle("signup", users.Signup)
	w.Handle("login", users.Login)
	w.Handle("verify_token", users.VerifyToken)

	runWorker(t, w)
}

// startItemWorker runs one item-backend replica over a shared store. All
// replicas bind the same durable, so create deliveries can be counted
// across them to prove work-queue distribution.
func startItemWorker(t *testing.T, url string, store *backends.ItemStore, createCalls *atomic.Int64) {
	t.Helper()

	w, err := worker.New(connectClient(t, url), worker.DefaultItemConfig(), nil, nil)
	require.NoError(t, err)

	w.Handle("create_item", func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		createCalls.Add(1)
		return store.CreateItem(ctx, payload)
	})
	w.Handle("get_item", store.GetItem)
	w.Handle("list_items", store.ListItems)
	w.Handle("update_item", store.UpdateItem)
	w.Handle("delete_item", store.DeleteItem)

	runWorker(t, w)
}

// gatewayReplica is one fully wired gateway instance with its own broker
// connection, correlators, fan-out subscription, hub, and HTTP server.
type gatewayReplica struct {
	server *httptest.Server
}

func startGatewayReplica(t *testing.T, url string) *gatewayReplica {
	t.Helper()
	nc := connectClient(t, url)

	userCorr, err := rpc.NewCorrelator(nc, "user", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = userCorr.Close() })

	itemCorr, err := rpc.NewCorrelator(nc, "item", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = itemCorr.Close() })

	users, err := rpc.NewClient(nc, userCorr, protocol.SubjectUserRequests,
		rpc.WithCallTimeout(5*time.Second))
	require.NoError(t, err)

	items, err := rpc.NewClient(nc, itemCorr, protocol.SubjectItemRequests,
		rpc.WithCallTimeout(5*time.Second))
	require.NoError(t, err)

	bus := fanout.NewBus(nc, protocol.SubjectItemUpdates, nil, nil)
	hub := realtime.NewHub(realtime.DefaultConfig(), NewAuthorizer(users), nil, nil)
	t.Cleanup(func() { _ = hub.Close() })
	require.NoError(t, bus.Subscribe(context.Background(), hub.Broadcast))

	router, err := NewRouter(Dependencies{
		Users:    users,
		Items:    items,
		Events:   bus,
		Realtime: hub,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	router.RegisterHandlers(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &gatewayReplica{server: server}
}

func doJSON(t *testing.T, method, url, token string, body any) (int, json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func dialWS(t *testing.T, serverURL, token string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	event, err := protocol.DecodeEvent(data)
	require.NoError(t, err)
	return event
}

// TestIntegration_TwoReplicaEndToEnd drives the full path over a real
// broker: signup and login through one gateway replica, item creation
// through the same replica, and the resulting catalog event observed by
// WebSocket clients of both replicas. The work queue must hand the create
// request to exactly one of the two item-backend replicas.
func TestIntegration_TwoReplicaEndToEnd(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())

	require.NoError(t, tc.Client.EnsureRequestStream(context.Background(), "rpc_requests",
		[]string{protocol.SubjectUserRequests, protocol.SubjectItemRequests}))

	var createCalls atomic.Int64
	store := backends.NewItemStore()

	startUserWorker(t, tc.URL)
	startItemWorker(t, tc.URL, store, &createCalls)
	startItemWorker(t, tc.URL, store, &createCalls)

	replicaA := startGatewayReplica(t, tc.URL)
	replicaB := startGatewayReplica(t, tc.URL)

	status, _ := doJSON(t, http.MethodPost, replicaA.server.URL+"/signup", "",
		map[string]string{"username": "ada", "password": "hunter2"})
	require.Equal(t, http.StatusCreated, status)

	status, loginBody := doJSON(t, http.MethodPost, replicaA.server.URL+"/login", "",
		map[string]string{"username": "ada", "password": "hunter2"})
	require.Equal(t, http.StatusOK, status)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(loginBody, &login))
	require.NotEmpty(t, login.Token)

	// One realtime client per replica, both connected before the create
	connA := dialWS(t, replicaA.server.URL, login.Token)
	connB := dialWS(t, replicaB.server.URL, login.Token)

	status, itemBody := doJSON(t, http.MethodPost, replicaA.server.URL+"/items", login.Token,
		map[string]any{"name": "Milk", "price": 2.5, "quantity": 2})
	require.Equal(t, http.StatusCreated, status)

	var item backends.Item
	require.NoError(t, json.Unmarshal(itemBody, &item))
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "Milk", item.Name)
	assert.Equal(t, 2.5, item.Price)
	assert.Equal(t, 2, item.Quantity)
	assert.Positive(t, item.CreatedAt)

	for name, conn := range map[string]*websocket.Conn{"replica A": connA, "replica B": connB} {
		event := readEvent(t, conn)
		assert.Equal(t, protocol.EventItemAdded, event.Type, name)

		var got backends.Item
		require.NoError(t, event.DecodeData(&got))
		assert.Equal(t, item.ID, got.ID, name)
		assert.Equal(t, "Milk", got.Name, name)
	}

	assert.Equal(t, int64(1), createCalls.Load(),
		"create_item must be delivered to exactly one backend replica")
}

// TestIntegration_VerifyTokenGuardsRoutes exercises the auth path over a
// real broker: no token and a bogus token are rejected, a real one passes.
func TestIntegration_VerifyTokenGuardsRoutes(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())

	require.NoError(t, tc.Client.EnsureRequestStream(context.Background(), "rpc_requests",
		[]string{protocol.SubjectUserRequests, protocol.SubjectItemRequests}))

	var createCalls atomic.Int64
	startUserWorker(t, tc.URL)
	startItemWorker(t, tc.URL, backends.NewItemStore(), &createCalls)

	replica := startGatewayReplica(t, tc.URL)

	status, _ := doJSON(t, http.MethodGet, replica.server.URL+"/items", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, http.MethodGet, replica.server.URL+"/items", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, http.MethodPost, replica.server.URL+"/signup", "",
		map[string]string{"username": "grace", "password": "pw123456"})
	require.Equal(t, http.StatusCreated, status)

	status, loginBody := doJSON(t, http.MethodPost, replica.server.URL+"/login", "",
		map[string]string{"username": "grace", "password": "pw123456"})
	require.Equal(t, http.StatusOK, status)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(loginBody, &login))

	status, listBody := doJSON(t, http.MethodGet, replica.server.URL+"/items", login.Token, nil)
	assert.Equal(t, http.StatusOK, status)

	var listing struct {
		Items []backends.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(listBody, &listing))
	assert.Empty(t, listing.Items)
}
