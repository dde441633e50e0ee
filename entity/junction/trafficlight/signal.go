package trafficlight

import (
	"errors"
	"fmt"
	"math"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
)

var (
	ErrFixedProgram = errors.New("traffic light program is fixed, only the phase can be set")
	ErrPhaseIndex   = errors.New("phase index out of range")
)

// cycle 相位程序中的方向顺序，同时也是没有调度排名时的轮转顺序
var cycle = [entity.NumDirections]entity.Direction{entity.North, entity.East, entity.South, entity.West}

// NumPhases 相位程序的相位数（每个方向一个绿灯相位与一个黄灯相位）
const NumPhases = 2 * entity.NumDirections

// SignalState 信号状态快照
type SignalState struct {
	Active    entity.Direction                       // 当前非红灯方向
	Phase     mapv2.LightState                       // Active的灯色（绿或黄）
	Countdown int                                    // 当前灯色剩余秒数
	Phases    [entity.NumDirections]mapv2.LightState // 各方向灯色
	Changes   int                                    // 累计绿灯切换次数
}

// SignalStateMachine 绿-黄-红相位状态机
// 功能：任一时刻恰有一个方向为绿灯或黄灯，其余为红灯；每秒节拍推进倒计时并在倒计时结束时切换灯色
// 说明：下一个绿灯方向取自调度器最近一次给出的排名；尚无排名时按北-东-南-西轮转。非线程安全
type SignalStateMachine struct {
	greenTime  int
	yellowTime int

	active    entity.Direction
	phase     mapv2.LightState
	countdown int
	ranking   []entity.Direction // 调度器最近一次给出的排名
	emergency bool               // ranking[0]为紧急方向
	changes   int
}

// NewSignalStateMachine 创建状态机
// 参数：greenTime/yellowTime-绿灯与黄灯时长（秒，至少为1），initial-初始绿灯方向
// 返回：除initial为绿灯外全部为红灯、倒计时为绿灯时长的状态机
func NewSignalStateMachine(greenTime, yellowTime int, initial entity.Direction) *SignalStateMachine {
	m := &SignalStateMachine{
		greenTime:  max(greenTime, 1),
		yellowTime: max(yellowTime, 1),
	}
	m.Reset(initial)
	return m
}

// Reset 重置为指定方向绿灯，倒计时为绿灯时长
func (m *SignalStateMachine) Reset(initial entity.Direction) {
	m.active = initial
	m.phase = mapv2.LightState_LIGHT_STATE_GREEN
	m.countdown = m.greenTime
	m.ranking = nil
	m.emergency = false
}

// Tick 推进1秒
// 返回：本次是否发生灯色切换
// 算法说明：
// 1. 倒计时大于1时仅减1
// 2. 倒计时为1且当前为绿灯：转为黄灯，倒计时重置为黄灯时长
// 3. 倒计时为1且当前为黄灯：当前方向转为红灯，下一个方向转为绿灯，倒计时重置为绿灯时长
// 4. 紧急方向的绿灯到期时续期一个绿灯时长，不进入黄灯
func (m *SignalStateMachine) Tick() bool {
	if m.countdown > 1 {
		m.countdown--
		return false
	}
	switch m.phase {
	case mapv2.LightState_LIGHT_STATE_GREEN:
		if m.holding() {
			m.countdown = m.greenTime
			log.Debugf("%v: green extended for emergency", m.active)
			return false
		}
		m.phase = mapv2.LightState_LIGHT_STATE_YELLOW
		m.countdown = m.yellowTime
		log.Debugf("%v: green -> yellow", m.active)
	default:
		served := m.active
		m.active = m.next(served)
		m.phase = mapv2.LightState_LIGHT_STATE_GREEN
		m.countdown = m.greenTime
		if m.active != served {
			m.changes++
		}
		log.Debugf("%v: yellow -> red, %v: red -> green", served, m.active)
	}
	return true
}

// Serve 接收调度排名
// 参数：ranking-方向排名（第一个为调度获胜方向），preempt-获胜方向不是当前绿灯时是否立即进入黄灯，
// emergency-获胜方向是否为紧急方向（紧急方向获得或保持绿灯，直到某次排名不再标记紧急）
// 说明：不抢占时排名在当前黄灯结束时生效
func (m *SignalStateMachine) Serve(ranking []entity.Direction, preempt, emergency bool) {
	if len(ranking) == 0 {
		return
	}
	m.ranking = append(m.ranking[:0], ranking...)
	m.emergency = emergency
	if preempt && m.phase == mapv2.LightState_LIGHT_STATE_GREEN && ranking[0] != m.active {
		m.phase = mapv2.LightState_LIGHT_STATE_YELLOW
		m.countdown = m.yellowTime
		log.Debugf("%v: green -> yellow (preempted by %v)", m.active, ranking[0])
	}
}

// holding 当前方向是否为紧急获胜方向
func (m *SignalStateMachine) holding() bool {
	return m.emergency && len(m.ranking) > 0 && m.ranking[0] == m.active
}

// next 选择下一个绿灯方向：排名中第一个不是刚放行方向的方向；刚放行方向为紧急方向时仍是它
func (m *SignalStateMachine) next(served entity.Direction) entity.Direction {
	if m.holding() {
		return served
	}
	if d, ok := lo.Find(m.ranking, func(d entity.Direction) bool { return d != served }); ok {
		return d
	}
	return served.Next()
}

// Active 当前非红灯方向与灯色
func (m *SignalStateMachine) Active() (entity.Direction, mapv2.LightState) {
	return m.active, m.phase
}

// Countdown 当前灯色剩余秒数
func (m *SignalStateMachine) Countdown() int {
	return m.countdown
}

// Phases 各方向灯色
func (m *SignalStateMachine) Phases() [entity.NumDirections]mapv2.LightState {
	var out [entity.NumDirections]mapv2.LightState
	for _, d := range entity.Directions {
		out[d] = mapv2.LightState_LIGHT_STATE_RED
	}
	out[m.active] = m.phase
	return out
}

// Snapshot 状态快照
func (m *SignalStateMachine) Snapshot() SignalState {
	return SignalState{
		Active:    m.active,
		Phase:     m.phase,
		Countdown: m.countdown,
		Phases:    m.Phases(),
		Changes:   m.changes,
	}
}

// Program 以相位程序的形式描述状态机
// 功能：按北-东-南-西顺序，每个方向一个绿灯相位与一个黄灯相位，每个相位的States按北、南、东、西排列
// 参数：junctionID-路口ID
func (m *SignalStateMachine) Program(junctionID int32) *mapv2.TrafficLight {
	phases := make([]*mapv2.Phase, 0, NumPhases)
	for _, d := range cycle {
		for _, state := range []mapv2.LightState{mapv2.LightState_LIGHT_STATE_GREEN, mapv2.LightState_LIGHT_STATE_YELLOW} {
			states := make([]mapv2.LightState, entity.NumDirections)
			for _, o := range entity.Directions {
				states[o] = mapv2.LightState_LIGHT_STATE_RED
			}
			states[d] = state
			duration := m.greenTime
			if state == mapv2.LightState_LIGHT_STATE_YELLOW {
				duration = m.yellowTime
			}
			phases = append(phases, &mapv2.Phase{Duration: float64(duration), States: states})
		}
	}
	return &mapv2.TrafficLight{JunctionId: junctionID, Phases: phases}
}

// PhaseIndex 当前状态在Program中的相位索引
func (m *SignalStateMachine) PhaseIndex() int32 {
	i := int32(2 * lo.IndexOf(cycle[:], m.active))
	if m.phase == mapv2.LightState_LIGHT_STATE_YELLOW {
		i++
	}
	return i
}

// SetPhase 手动设置相位
// 参数：index-Program中的相位索引，remaining-剩余时间（秒，向上取整，至少为1）
// 返回：索引越界时返回ErrPhaseIndex
func (m *SignalStateMachine) SetPhase(index int32, remaining float64) error {
	if index < 0 || index >= NumPhases {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrPhaseIndex, index, NumPhases)
	}
	m.active = cycle[index/2]
	m.phase = mapv2.LightState_LIGHT_STATE_GREEN
	if index%2 == 1 {
		m.phase = mapv2.LightState_LIGHT_STATE_YELLOW
	}
	m.countdown = max(int(math.Ceil(remaining)), 1)
	log.Infof("phase set to %d (%v %v), %ds remaining", index, m.active, PhaseName(m.phase), m.countdown)
	return nil
}

// PhaseName 灯色的小写名称：green、yellow、red
func PhaseName(s mapv2.LightState) string {
	switch s {
	case mapv2.LightState_LIGHT_STATE_GREEN:
		return "green"
	case mapv2.LightState_LIGHT_STATE_YELLOW:
		return "yellow"
	default:
		return "red"
	}
}
