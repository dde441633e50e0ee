package trafficlight_test

import (
	"testing"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/junction/trafficlight"
)

const (
	green  = mapv2.LightState_LIGHT_STATE_GREEN
	yellow = mapv2.LightState_LIGHT_STATE_YELLOW
	red    = mapv2.LightState_LIGHT_STATE_RED
)

func assertOneActive(t *testing.T, m *trafficlight.SignalStateMachine) {
	t.Helper()
	nonRed := 0
	for _, p := range m.Phases() {
		if p != red {
			nonRed++
		}
	}
	assert.Equal(t, 1, nonRed)
	assert.Greater(t, m.Countdown(), 0)
}

func TestInitialState(t *testing.T) {
	m := trafficlight.NewSignalStateMachine(30, 5, entity.East)
	s := m.Snapshot()
	assert.Equal(t, entity.East, s.Active)
	assert.Equal(t, green, s.Phase)
	assert.Equal(t, 30, s.Countdown)
	assert.Equal(t, [4]mapv2.LightState{red, red, green, red}, s.Phases)
	assertOneActive(t, m)
}

func TestRoundRobinWithoutRanking(t *testing.T) {
	m := trafficlight.NewSignalStateMachine(3, 2, entity.North)
	var seen []entity.Direction
	for range 20 {
		if m.Tick() {
			if d, p := m.Active(); p == green {
				seen = append(seen, d)
			}
		}
		assertOneActive(t, m)
	}
	// 每个方向3+2=5秒
	assert.Equal(t, []entity.Direction{entity.East, entity.South, entity.West, entity.North}, seen)
	assert.Equal(t, 4, m.Snapshot().Changes)
}

func TestCountdownTransitions(t *testing.T) {
	m := trafficlight.NewSignalStateMachine(3, 2, entity.North)
	assert.False(t, m.Tick())
	assert.False(t, m.Tick())
	assert.Equal(t, 1, m.Countdown())
	assert.True(t, m.Tick())
	d, p := m.Active()
	assert.Equal(t, entity.North, d)
	assert.Equal(t, yellow, p)
	assert.Equal(t, 2, m.Countdown())
	assert.False(t, m.Tick())
	assert.True(t, m.Tick())
	d, p = m.Active()
	assert.Equal(t, entity.East, d)
	assert.Equal(t, green, p)
	assert.Equal(t, 3, m.Countdown())
}

func TestServeRankingChoosesNext(t *testing.T) {
	m := trafficlight.NewSignalStateMachine(2, 1, entity.North)
	m.Serve([]entity.Direction{entity.North, entity.West, entity.South, entity.East}, false, false)
	// 不抢占：当前绿灯走完
	d, p := m.Active()
	assert.Equal(t, entity.North, d)
	assert.Equal(t, green, p)
	m.Tick()
	m.Tick() // yellow
	m.Tick() // 刚放行的north之后取排名中的west
	d, p = m.Active()
	assert.Equal(t, entity.West, d)
	assert.Equal(t, green, p)
	assertOneActive(t, m)
}

func TestServePreempt(t *testing.T) {
	m := trafficlight.NewSignalStateMachine(30, 5, entity.North)
	m.Serve([]entity.Direction{entity.South, entity.North, entity.East, entity.West}, true, false)
	d, p := m.Active()
	assert.Equal(t, entity.North, d)
	assert.Equal(t, yellow, p)
	assert.Equal(t, 5, m.Countdown())
	for range 5 {
		m.Tick()
		assertOneActive(t, m)
	}
	d, p = m.Active()
	assert.Equal(t, entity.South, d)
	assert.Equal(t, green, p)

	// 获胜方向已是绿灯时不抢占
	m.Serve([]entity.Direction{entity.South}, true, false)
	_, p = m.Active()
	assert.Equal(t, green, p)
	assert.Equal(t, 30, m.Countdown())
}

func TestEmergencyHoldsGreen(t *testing.T) {
	m := trafficlight.NewSignalStateMachine(3, 2, entity.North)
	emergency := []entity.Direction{entity.West, entity.North, entity.South, entity.East}
	m.Serve(emergency, true, true)
	m.Tick()
	m.Tick() // north yellow结束，west绿灯
	d, p := m.Active()
	require.Equal(t, entity.West, d)
	require.Equal(t, green, p)
	assert.Equal(t, 1, m.Snapshot().Changes)

	// 紧急方向绿灯到期后续期，不让给其他方向
	for range 10 {
		m.Tick()
		d, p = m.Active()
		assert.Equal(t, entity.West, d)
		assert.Equal(t, green, p)
		assertOneActive(t, m)
	}
	assert.Equal(t, 1, m.Snapshot().Changes)

	// 紧急状态解除后正常走完绿灯
	m.Serve([]entity.Direction{entity.North, entity.West, entity.South, entity.East}, false, false)
	for m.Countdown() > 1 {
		m.Tick()
	}
	assert.True(t, m.Tick())
	d, p = m.Active()
	assert.Equal(t, entity.West, d)
	assert.Equal(t, yellow, p)
}

func TestEmergencyDuringOwnYellowReturnsToGreen(t *testing.T) {
	m := trafficlight.NewSignalStateMachine(3, 2, entity.North)
	m.Tick()
	m.Tick()
	m.Tick() // north yellow
	_, p := m.Active()
	require.Equal(t, yellow, p)

	m.Serve([]entity.Direction{entity.North, entity.East, entity.South, entity.West}, true, true)
	m.Tick()
	m.Tick()
	d, p := m.Active()
	assert.Equal(t, entity.North, d)
	assert.Equal(t, green, p)
	assert.Equal(t, 3, m.Countdown())
	assert.Equal(t, 0, m.Snapshot().Changes)
}

func TestProgramAndPhaseIndex(t *testing.T) {
	m := trafficlight.NewSignalStateMachine(30, 5, entity.North)
	tl := m.Program(7)
	assert.Equal(t, int32(7), tl.JunctionId)
	require.Len(t, tl.Phases, trafficlight.NumPhases)
	assert.Equal(t, 30., tl.Phases[0].Duration)
	assert.Equal(t, 5., tl.Phases[1].Duration)
	// 第2个绿灯相位属于east，States按北、南、东、西排列
	assert.Equal(t, []mapv2.LightState{red, red, green, red}, tl.Phases[2].States)
	assert.Equal(t, []mapv2.LightState{red, yellow, red, red}, tl.Phases[5].States)
	assert.Equal(t, int32(0), m.PhaseIndex())

	require.NoError(t, m.SetPhase(7, 2.2))
	d, p := m.Active()
	assert.Equal(t, entity.West, d)
	assert.Equal(t, yellow, p)
	assert.Equal(t, 3, m.Countdown())
	assert.Equal(t, int32(7), m.PhaseIndex())
	phases := m.Phases()
	assert.Equal(t, tl.Phases[7].States, phases[:])

	require.NoError(t, m.SetPhase(4, 0))
	assert.Equal(t, 1, m.Countdown())
	assert.ErrorIs(t, m.SetPhase(8, 1), trafficlight.ErrPhaseIndex)
	assert.ErrorIs(t, m.SetPhase(-1, 1), trafficlight.ErrPhaseIndex)
}

func TestPhaseName(t *testing.T) {
	assert.Equal(t, "green", trafficlight.PhaseName(green))
	assert.Equal(t, "yellow", trafficlight.PhaseName(yellow))
	assert.Equal(t, "red", trafficlight.PhaseName(red))
}
