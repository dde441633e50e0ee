package junction

import (
	"context"
	"encoding/json"
	"testing"

	"connectrpc.com/connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/clock"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/randengine"
)

type testContext struct {
	clock *clock.Clock
	rc    *config.RuntimeConfig
}

func (c *testContext) Clock() *clock.Clock                  { return c.clock }
func (c *testContext) RuntimeConfig() *config.RuntimeConfig { return c.rc }

func newTestManager(t *testing.T, mutate func(*config.Config)) (*JunctionManager, *testContext) {
	t.Helper()
	var c config.Config
	c.Control.Signal.JunctionID = 4
	if mutate != nil {
		mutate(&c)
	}
	rc := config.NewRuntimeConfig(c)
	ctx := &testContext{
		clock: clock.New(rc.C.Step, rc.C.Signal.ScheduleInterval),
		rc:    rc,
	}
	m := NewManager(ctx)
	m.Init(randengine.New(1))
	return m, ctx
}

func step(m *JunctionManager, ctx *testContext) {
	ctx.clock.Advance()
	m.Prepare()
	m.Update()
}

func TestInitialStatus(t *testing.T) {
	m, _ := newTestManager(t, func(c *config.Config) {
		c.Control.Signal.DefaultGreen = "east"
	})
	s := m.Main().Status()
	assert.Equal(t, int32(4), s.JunctionID)
	assert.Equal(t, entity.East, s.Active)
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, s.Phase)
	assert.Equal(t, int32(2), s.PhaseIndex)
	assert.Nil(t, s.Scheduled)
	assert.Nil(t, s.Emergency)
	for _, d := range entity.Directions {
		if d == entity.East {
			assert.Equal(t, mapv2.LightState_LIGHT_STATE_GREEN, s.Directions[d].Signal)
		} else {
			assert.Equal(t, mapv2.LightState_LIGHT_STATE_RED, s.Directions[d].Signal)
		}
	}

	_, err := m.Get(5)
	assert.ErrorIs(t, err, ErrUnknownJunction)
}

func TestStatusJSON(t *testing.T) {
	m, _ := newTestManager(t, nil)
	data, err := json.Marshal(m.Main().Status())
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "north", out["active"])
	assert.Equal(t, "green", out["phase"])
	assert.Nil(t, out["scheduled"])
	directions, ok := out["directions"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, directions, 4)
	west, ok := directions["west"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "red", west["signal"])
}

func TestScheduleStepRecordsWinner(t *testing.T) {
	m, ctx := newTestManager(t, nil)
	j := m.Main()
	before := j.Status().Directions
	total := 0
	for _, d := range before {
		total += d.Vehicles
	}
	for range 3 {
		step(m, ctx)
	}
	m.Prepare()
	s := j.Status()
	require.NotNil(t, s.Scheduled)
	assert.Equal(t, 1, s.Ticks)
	after := 0
	cleared := 0
	for _, d := range s.Directions {
		after += d.Vehicles
		cleared += d.Cleared
	}
	// 获胜方向放行，其余三个方向各到达一辆
	assert.Equal(t, total+3, after+cleared)
	assert.Positive(t, cleared)
}

func TestEmergencyBufferedUntilPrepare(t *testing.T) {
	m, _ := newTestManager(t, nil)
	j := m.Main()
	j.SetEmergency(entity.South)
	assert.Nil(t, j.Status().Emergency)
	m.Prepare()
	require.NotNil(t, j.Status().Emergency)
	assert.Equal(t, entity.South, *j.Status().Emergency)

	j.ClearEmergency()
	m.Prepare()
	assert.Nil(t, j.Status().Emergency)
}

func TestLiveCountsMerge(t *testing.T) {
	m, _ := newTestManager(t, nil)
	j := m.Main()
	j.SetLiveCounts(map[entity.Direction]int{entity.North: 3, entity.East: 1})
	j.SetLiveCounts(map[entity.Direction]int{entity.East: 7})
	live := j.LiveCounts()
	assert.Equal(t, map[entity.Direction]int{entity.North: 3, entity.East: 7}, live)
	live[entity.West] = 9
	assert.NotContains(t, j.LiveCounts(), entity.West)
}

func TestGetTrafficLight(t *testing.T) {
	m, _ := newTestManager(t, nil)
	res, err := m.GetTrafficLight(context.Background(), connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 4}))
	require.NoError(t, err)
	tl := res.Msg.TrafficLight
	require.NotNil(t, tl)
	assert.Equal(t, int32(4), tl.JunctionId)
	assert.Len(t, tl.Phases, 8)
	assert.Equal(t, int32(0), res.Msg.PhaseIndex)
	assert.Equal(t, 30., res.Msg.TimeRemaining)

	// 返回的是副本
	tl.Phases = nil
	assert.Len(t, m.Main().Program().Phases, 8)

	_, err = m.GetTrafficLight(context.Background(), connect.NewRequest(&mapv2.GetTrafficLightRequest{JunctionId: 1}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestSetTrafficLightRejected(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.SetTrafficLight(context.Background(), connect.NewRequest(&mapv2.SetTrafficLightRequest{
		TrafficLight: &mapv2.TrafficLight{JunctionId: 4},
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = m.SetTrafficLight(context.Background(), connect.NewRequest(&mapv2.SetTrafficLightRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestSetTrafficLightPhase(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.SetTrafficLightPhase(context.Background(), connect.NewRequest(&mapv2.SetTrafficLightPhaseRequest{
		JunctionId:    4,
		PhaseIndex:    5,
		TimeRemaining: 2.5,
	}))
	require.NoError(t, err)
	assert.Equal(t, entity.North, m.Main().Status().Active)

	m.Prepare()
	s := m.Main().Status()
	assert.Equal(t, entity.South, s.Active)
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_YELLOW, s.Phase)
	assert.Equal(t, int32(5), s.PhaseIndex)
	assert.Equal(t, 3, s.Countdown)

	for _, req := range []*mapv2.SetTrafficLightPhaseRequest{
		{JunctionId: 4, PhaseIndex: 8},
		{JunctionId: 4, PhaseIndex: -1},
		{JunctionId: 4, PhaseIndex: 0, TimeRemaining: -1},
		{JunctionId: 9, PhaseIndex: 0},
	} {
		_, err := m.SetTrafficLightPhase(context.Background(), connect.NewRequest(req))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	}
}

func TestSignalCountsSecondsWithHalfSecondSteps(t *testing.T) {
	m, ctx := newTestManager(t, func(c *config.Config) {
		c.Control.Step.Interval = 0.5
	})
	j := m.Main()
	yellowAt := -1.
	for range 100 {
		step(m, ctx)
		if ctx.clock.Time() == 5 {
			assert.Equal(t, 25, j.signal.Snapshot().Countdown)
		}
		if j.signal.Snapshot().Phase == mapv2.LightState_LIGHT_STATE_YELLOW {
			yellowAt = ctx.clock.Time()
			break
		}
	}
	assert.Equal(t, 30., yellowAt)
	// 调度间隔仍为3秒
	assert.Equal(t, 10, j.scheduler.Ticks())
}

func TestSignalCountsSecondsWithLongSteps(t *testing.T) {
	m, ctx := newTestManager(t, func(c *config.Config) {
		c.Control.Step.Interval = 2
	})
	j := m.Main()
	for range 15 {
		step(m, ctx)
	}
	// 30秒：绿灯恰好到期转为黄灯
	assert.Equal(t, 30., ctx.clock.Time())
	s := j.signal.Snapshot()
	assert.Equal(t, mapv2.LightState_LIGHT_STATE_YELLOW, s.Phase)
	assert.Equal(t, 5, s.Countdown)
}

func TestClearPerTickZeroClearsNothing(t *testing.T) {
	m, ctx := newTestManager(t, func(c *config.Config) {
		c.Control.Signal.ClearPerTick = lo.ToPtr(0)
	})
	for range 9 {
		step(m, ctx)
	}
	m.Prepare()
	s := m.Main().Status()
	assert.Equal(t, 3, s.Ticks)
	for _, d := range s.Directions {
		assert.Zero(t, d.Cleared)
	}
}
