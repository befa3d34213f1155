package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/i3xbridge/config"
	"github.com/c360/i3xbridge/mapping"
	"github.com/c360/i3xbridge/mqttclient"
	"github.com/c360/i3xbridge/store"
	"github.com/c360/i3xbridge/subscription"
	"github.com/c360/i3xbridge/types"
)

type fakeBroker struct {
	mu     sync.Mutex
	status mqttclient.ConnectionStatus
	topics map[string]struct{}
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		status: mqttclient.StatusConnected,
		topics: make(map[string]struct{}),
	}
}

func (f *fakeBroker) Subscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics[topic] = struct{}{}
	return nil
}

func (f *fakeBroker) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.topics, topic)
	return nil
}

func (f *fakeBroker) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.topics))
	for topic := range f.topics {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

func (f *fakeBroker) Status() mqttclient.ConnectionStatus { return f.status }
func (f *fakeBroker) Reconnects() int64                   { return 0 }

type testEnv struct {
	server  *Server
	handler http.Handler
	objects *store.Store
	subs    *subscription.Manager
	engine  *mapping.Engine
	broker  *fakeBroker
}

func newTestEnv(t *testing.T, mutate ...func(*config.ServerConfig, *config.AuthConfig)) *testEnv {
	t.Helper()

	objects := store.New()
	subs := subscription.NewManager()
	engine := mapping.NewEngine()
	broker := newFakeBroker()

	serverCfg := config.DefaultConfig().Server
	authCfg := config.AuthConfig{}
	for _, fn := range mutate {
		fn(&serverCfg, &authCfg)
	}

	srv, err := NewServer(serverCfg, authCfg, Deps{
		Objects:       objects,
		Subscriptions: subs,
		Engine:        engine,
		Broker:        broker,
	})
	require.NoError(t, err)

	// Mirror the production wiring: store changes fan out to
	// subscriptions.
	objects.AddChangeListener(func(id string, ov types.ObjectValue, _ *types.ObjectInstance) {
		subs.NotifyChange(id, ov)
	})

	return &testEnv{
		server:  srv,
		handler: srv.Router(),
		objects: objects,
		subs:    subs,
		engine:  engine,
		broker:  broker,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func seedInstance(env *testEnv, id, typeID, namespaceURI string, value types.Value) {
	env.objects.Upsert(id,
		types.ObjectValue{ElementID: id, Value: value, Timestamp: types.NowRFC3339()},
		&types.ObjectInstance{
			ElementID:    id,
			DisplayName:  id,
			TypeID:       typeID,
			NamespaceURI: namespaceURI,
		})
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(config.DefaultConfig().Server, config.AuthConfig{}, Deps{})
	assert.Error(t, err)

	_, err = NewServer(config.DefaultConfig().Server,
		config.AuthConfig{Enabled: true},
		Deps{Objects: store.New(), Subscriptions: subscription.NewManager(), Engine: mapping.NewEngine()})
	assert.Error(t, err, "auth without keys")
}

func TestListNamespaces(t *testing.T) {
	env := newTestEnv(t)
	env.objects.RegisterNamespace(types.Namespace{URI: "urn:factory:one", DisplayName: "Factory One"})

	rec := env.do(t, http.MethodGet, "/namespaces", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Namespaces []types.Namespace `json:"namespaces"`
	}
	decodeInto(t, rec, &body)

	uris := make([]string, len(body.Namespaces))
	for i, ns := range body.Namespaces {
		uris[i] = ns.URI
	}
	assert.Contains(t, uris, "urn:factory:one")
	assert.Contains(t, uris, types.DefaultNamespace)
	assert.Contains(t, uris, types.RelationshipNamespace)
}

func TestObjectTypesListAndQuery(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.objects.RegisterObjectType(types.ObjectType{
		ElementID: "TemperatureSensor", NamespaceURI: "urn:factory:one"}))
	require.NoError(t, env.objects.RegisterObjectType(types.ObjectType{
		ElementID: "KPI", NamespaceURI: "urn:factory:two"}))

	rec := env.do(t, http.MethodGet, "/objecttypes?namespaceUri=urn:factory:one", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ObjectTypes []types.ObjectType `json:"objectTypes"`
	}
	decodeInto(t, rec, &body)
	require.Len(t, body.ObjectTypes, 1)
	assert.Equal(t, "TemperatureSensor", body.ObjectTypes[0].ElementID)

	rec = env.do(t, http.MethodPost, "/objecttypes/query",
		map[string]any{"elementIds": []string{"KPI", "missing"}})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeInto(t, rec, &body)
	require.Len(t, body.ObjectTypes, 1)
	assert.Equal(t, "KPI", body.ObjectTypes[0].ElementID)
}

func TestRelationshipTypesBuiltins(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/relationshiptypes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		RelationshipTypes []types.RelationshipType `json:"relationshipTypes"`
	}
	decodeInto(t, rec, &body)
	assert.Len(t, body.RelationshipTypes, 4)

	rec = env.do(t, http.MethodPost, "/relationshiptypes/query",
		map[string]any{"elementIds": []string{types.RelHasParent}})
	decodeInto(t, rec, &body)
	require.Len(t, body.RelationshipTypes, 1)
	assert.Equal(t, types.RelHasChildren, body.RelationshipTypes[0].ReverseOf)
}

func TestListObjectsShapeAndFilters(t *testing.T) {
	env := newTestEnv(t)
	seedInstance(env, "plant.line1.temp", "TemperatureSensor", "urn:factory:one", types.Number(21.5))
	seedInstance(env, "other.tag", "GenericTag", "urn:factory:two", types.String("x"))

	rec := env.do(t, http.MethodGet, "/objects?namespaceUri=urn:factory:one&typeId=TemperatureSensor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out []objectSummary
	decodeInto(t, rec, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "plant.line1.temp", out[0].ElementID)
	assert.Equal(t, "plant.line1", out[0].ParentID)
	assert.False(t, out[0].HasChildren)

	// Placeholder ancestors materialize and report children.
	rec = env.do(t, http.MethodPost, "/objects/list",
		map[string]any{"elementIds": []string{"plant.line1", "missing"}})
	decodeInto(t, rec, &out)
	require.Len(t, out, 1)
	assert.Equal(t, types.TypePlaceholder, out[0].TypeID)
	assert.True(t, out[0].HasChildren)
}

func TestObjectsRelatedDepthAndCycles(t *testing.T) {
	env := newTestEnv(t)
	seedInstance(env, "a", "GenericTag", "urn:factory:one", types.Number(1))
	seedInstance(env, "b", "GenericTag", "urn:factory:one", types.Number(2))
	seedInstance(env, "c", "GenericTag", "urn:factory:one", types.Number(3))
	env.objects.AddRelationship("a", "b", types.RelHasComponent)
	env.objects.AddRelationship("b", "c", types.RelHasComponent)
	env.objects.AddRelationship("c", "a", types.RelHasComponent) // cycle

	rec := env.do(t, http.MethodPost, "/objects/related",
		map[string]any{"elementId": "a", "relationshipTypeId": types.RelHasComponent})
	require.Equal(t, http.StatusOK, rec.Code)
	var out []relatedObject
	decodeInto(t, rec, &out)
	require.Len(t, out, 1, "depth 0 returns direct neighbours only")
	assert.Equal(t, "b", out[0].ElementID)

	rec = env.do(t, http.MethodPost, "/objects/related",
		map[string]any{"elementId": "a", "relationshipTypeId": types.RelHasComponent, "depth": 5})
	decodeInto(t, rec, &out)
	require.Len(t, out, 2, "cycle must not revisit the origin")

	rec = env.do(t, http.MethodPost, "/objects/related",
		map[string]any{"elementId": "a", "includeMetadata": true})
	decodeInto(t, rec, &out)
	require.NotEmpty(t, out)
	require.NotNil(t, out[0].Value)

	rec = env.do(t, http.MethodPost, "/objects/related", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestObjectsValueCompositionTree(t *testing.T) {
	env := newTestEnv(t)
	seedInstance(env, "machine", "DecomposedComponent", "urn:factory:one", types.Number(1))
	seedInstance(env, "machine.oee", "KPI", "urn:factory:one", types.Number(87.7))
	env.objects.AddRelationship("machine", "machine.oee", types.RelHasComponent)
	env.objects.AddRelationship("machine.oee", "machine", types.RelComponentOf)

	// Default depth 1: no children.
	rec := env.do(t, http.MethodPost, "/objects/value",
		map[string]any{"elementIds": []string{"machine", "ghost"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	decodeInto(t, rec, &out)

	require.Contains(t, out, "ghost")
	assert.Nil(t, out["ghost"])

	machine, ok := out["machine"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, machine, "data")
	assert.NotContains(t, machine, "machine.oee")

	// Unlimited depth walks HasComponent edges.
	rec = env.do(t, http.MethodPost, "/objects/value",
		map[string]any{"elementIds": []string{"machine"}, "maxDepth": 0})
	decodeInto(t, rec, &out)
	machine = out["machine"].(map[string]any)
	child, ok := machine["machine.oee"].(map[string]any)
	require.True(t, ok)
	data, ok := child["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	sample := data[0].(map[string]any)
	assert.Equal(t, 87.7, sample["value"])
}

func TestObjectsHistoryNotImplemented(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/objects/history", map[string]any{})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/objects/list", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, func(_ *config.ServerConfig, auth *config.AuthConfig) {
		auth.Enabled = true
		auth.APIKeys = []string{"secret"}
	})

	rec := env.do(t, http.MethodGet, "/namespaces", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/namespaces", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/namespaces", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays reachable without credentials.
	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(server *config.ServerConfig, _ *config.AuthConfig) {
		server.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 2}
	})

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		codes = append(codes, env.do(t, http.MethodGet, "/namespaces", nil).Code)
	}
	assert.Contains(t, codes, http.StatusTooManyRequests)
	assert.Equal(t, http.StatusOK, codes[0])
}

func TestHealthDegradedWhenReconnecting(t *testing.T) {
	env := newTestEnv(t)
	env.broker.status = mqttclient.StatusReconnecting

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Status      string `json:"status"`
		SubStatuses []struct {
			Component string `json:"component"`
			Status    string `json:"status"`
		} `json:"subStatuses"`
	}
	decodeInto(t, rec, &status)
	assert.Equal(t, "degraded", status.Status)

	env.broker.status = mqttclient.StatusDisconnected
	rec = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
