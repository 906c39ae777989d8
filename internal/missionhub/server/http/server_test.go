package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/service"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/store/memory"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

type recordedCommand struct {
	vin     string
	command protocol.CommandName
}

type fakeCommands struct{ sent []recordedCommand }

func (f *fakeCommands) Notify(_ context.Context, vin string, command protocol.CommandName, _ any) error {
	f.sent = append(f.sent, recordedCommand{vin, command})
	return nil
}

type nopLive struct{}

func (nopLive) Publish(context.Context, string, string, any) error { return nil }

func newTestServer(t *testing.T, ready bool) (*httptest.Server, *fakeCommands) {
	t.Helper()
	commands := &fakeCommands{}
	svc := service.New(memory.New(), commands, nopLive{})
	srv := httptest.NewServer(NewRouter(svc, nil, func() bool { return ready }))
	t.Cleanup(srv.Close)
	return srv, commands
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

var createBody = map[string]any{
	"vin":      "VIN1",
	"taskCode": "TASK1",
	"date":     "2024-01-01",
	"taskDispatched": map[string]any{
		"name":                "survey",
		"taskRouteLineString": map[string]any{"type": "LineString", "coordinates": [][]float64{{30, 50}}},
	},
}

func TestMissionAPI(t *testing.T) {
	srv, commands := newTestServer(t, true)
	code := url.PathEscape("VIN1|TASK1|2024-01-01")

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/missions", createBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.MissionDuty](t, resp)
	assert.Equal(t, "VIN1|TASK1|2024-01-01", created.MissionCode)
	assert.Equal(t, model.StatusCreated, created.Status)

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/missions", createBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/missions/"+code, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "survey", decode[model.MissionDuty](t, resp).Task.Name)

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/vehicles/VIN1/missions/"+code+"/send", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, commands.sent, 1)
	assert.Equal(t, protocol.CommandLoadMission, commands.sent[0].command)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/vehicles/VIN1/missions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.MissionDuty](t, resp), 1)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/missions/"+code+"/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[[]model.MissionEvent](t, resp)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventMissionSent, events[0].Event)

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/missions/"+code+"/cancel", CancelRequest{Reason: "weather"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusCancelled, decode[model.MissionDuty](t, resp).Status)

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/missions/"+code+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/missions/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[model.MissionStats](t, resp)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[model.StatusCancelled])
}

func TestMissionAPIErrors(t *testing.T) {
	srv, _ := newTestServer(t, true)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/missions/"+url.PathEscape("nope|x|y"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/missions", map[string]string{"vin": "VIN1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/missions", map[string]string{"unknown": "field"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/missions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.MissionDuty](t, resp))
}

func TestSendCommand(t *testing.T) {
	srv, commands := newTestServer(t, true)

	resp := do(t, http.MethodPost, srv.URL+"/api/v1/vehicles/VIN1/commands", CommandRequest{Command: protocol.CommandAwaitAssignment})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, commands.sent, 1)
	assert.Equal(t, "VIN1", commands.sent[0].vin)

	resp = do(t, http.MethodPost, srv.URL+"/api/v1/vehicles/VIN1/commands", CommandRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProbes(t *testing.T) {
	ready, _ := newTestServer(t, true)
	notReady, _ := newTestServer(t, false)

	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, ready.URL+"/healthz", nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, ready.URL+"/readyz", nil).StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, http.MethodGet, notReady.URL+"/readyz", nil).StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, ready.URL+"/metrics", nil).StatusCode)
}
