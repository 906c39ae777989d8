package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
	"github.com/autopeer-io/fleetpeer/pkg/protocol"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "missions.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestMissionLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close(ctx)
	repo := s.Missions()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &model.MissionDuty{
		ID:          "01HX",
		MissionCode: "V1|T1|2024-01-01",
		VIN:         "V1",
		Status:      model.StatusCreated,
		Task:        protocol.TaskSnapshot{Route: protocol.NewLineString([][]float64{{1, 2}})},
		CreatedAt:   created,
	}
	require.NoError(t, repo.Create(ctx, m))
	assert.ErrorIs(t, repo.Create(ctx, m), core.ErrAlreadyExists)

	byID, err := repo.FindByID(ctx, "01HX")
	require.NoError(t, err)
	assert.Equal(t, m.MissionCode, byID.MissionCode)
	assert.Equal(t, [][]float64{{1, 2}}, byID.Task.Route.Coordinates)

	at := created.Add(time.Hour)
	require.NoError(t, repo.Transition(ctx, &model.Transition{
		MissionCode: m.MissionCode,
		Status:      model.StatusDispatched,
		At:          at,
		Dispatched:  true,
		Event:       &model.MissionEvent{ID: "e1", MissionCode: m.MissionCode, Event: protocol.EventStarted},
	}))

	open, err := repo.FindOpenForVIN(ctx, "V1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].DispatchedAt.Equal(at))

	_, err = repo.FindByCode(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	events, err := s.Events().ListByMission(ctx, m.MissionCode)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, protocol.EventStarted, events[0].Event)
}

func TestTransitionRollsBackEvent(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close(ctx)

	err := s.Missions().Transition(ctx, &model.Transition{
		MissionCode: "missing",
		Status:      model.StatusDispatched,
		Dispatched:  true,
		Event:       &model.MissionEvent{ID: "e1", MissionCode: "missing", Event: protocol.EventStarted},
	})
	require.ErrorIs(t, err, core.ErrNotFound)

	events, err := s.Events().ListByMission(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close(ctx)
	repo := s.Missions()

	base := time.Now()
	for i, code := range []string{"Z|T|d", "A|T|d", "M|T|d"} {
		require.NoError(t, repo.Create(ctx, &model.MissionDuty{
			ID:          code,
			MissionCode: code,
			VIN:         code[:1],
			Status:      model.StatusCreated,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := repo.List(ctx, model.MissionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Z|T|d", all[0].MissionCode)
	assert.Equal(t, "M|T|d", all[2].MissionCode)

	one, err := repo.List(ctx, model.MissionFilter{VIN: "A"})
	require.NoError(t, err)
	require.Len(t, one, 1)
}

func TestEventsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	for _, e := range []protocol.EventName{protocol.EventStarted, protocol.EventDocked, protocol.EventCompleted} {
		require.NoError(t, s.Events().Create(ctx, &model.MissionEvent{
			ID: string(e), MissionCode: "code", Event: e, Data: map[string]any{"k": "v"},
		}))
	}
	require.NoError(t, s.Close(ctx))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close(ctx)

	events, err := s.Events().ListByMission(ctx, "code")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, protocol.EventStarted, events[0].Event)
	assert.Equal(t, protocol.EventCompleted, events[2].Event)
	assert.Equal(t, "v", events[1].Data["k"])

	none, err := s.Events().ListByMission(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}
