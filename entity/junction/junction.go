package junction

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/randengine"
)

var (
	ErrUnknownJunction = errors.New("junction id does not exist")
)

// DirectionStatus 单个方向的状态
type DirectionStatus struct {
	Signal   mapv2.LightState
	Vehicles int // 排队车辆数
	Cleared  int // 累计放行车辆数
}

// Status 路口状态快照，每步prepare时写入
type Status struct {
	JunctionID    int32
	Time          float64
	Active        entity.Direction
	Phase         mapv2.LightState
	Countdown     int
	PhaseIndex    int32
	Ticks         int
	SignalChanges int
	Scheduled     *entity.Direction // 最近一次调度的获胜方向，尚未调度时为nil
	Emergency     *entity.Direction // 紧急方向，无紧急状态时为nil
	Directions    [entity.NumDirections]DirectionStatus
}

func (s Status) MarshalJSON() ([]byte, error) {
	type directionJSON struct {
		Signal   string `json:"signal"`
		Vehicles int    `json:"vehicles"`
		Cleared  int    `json:"cleared"`
	}
	directions := make(map[entity.Direction]directionJSON, entity.NumDirections)
	for _, d := range entity.Directions {
		ds := s.Directions[d]
		directions[d] = directionJSON{
			Signal:   trafficlight.PhaseName(ds.Signal),
			Vehicles: ds.Vehicles,
			Cleared:  ds.Cleared,
		}
	}
	return json.Marshal(struct {
		JunctionID    int32                              `json:"junctionId"`
		Time          float64                            `json:"time"`
		Active        entity.Direction                   `json:"active"`
		Phase         string                             `json:"phase"`
		Countdown     int                                `json:"countdown"`
		PhaseIndex    int32                              `json:"phaseIndex"`
		Tick          int                                `json:"tick"`
		SignalChanges int                                `json:"signalChanges"`
		Scheduled     *entity.Direction                  `json:"scheduled"`
		Emergency     *entity.Direction                  `json:"emergency"`
		Directions    map[entity.Direction]directionJSON `json:"directions"`
	}{
		JunctionID:    s.JunctionID,
		Time:          s.Time,
		Active:        s.Active,
		Phase:         trafficlight.PhaseName(s.Phase),
		Countdown:     s.Countdown,
		PhaseIndex:    s.PhaseIndex,
		Tick:          s.Ticks,
		SignalChanges: s.SignalChanges,
		Scheduled:     s.Scheduled,
		Emergency:     s.Emergency,
		Directions:    directions,
	})
}

type phaseBuffer struct {
	index     int32
	remaining float64
}

type emergencyBuffer struct {
	direction entity.Direction
	set       bool // false表示取消紧急状态
}

// Junction 十字路口
// 功能：持有调度器与信号状态机，每步推进倒计时，每个调度节拍执行一次调度
// 说明：update只在模拟循环中调用；其他goroutine只读取快照，写入先进入buffer，在下一次prepare时生效
type Junction struct {
	ctx entity.ITaskContext

	id        int32
	preempt   bool
	scheduler IScheduler
	signal    ISignal
	program   *mapv2.TrafficLight // 信号方案，时长固定
	scheduled *entity.Direction

	mtx             sync.RWMutex
	snapshot        Status
	live            map[entity.Direction]int // 外部提供的实时车流计数
	phaseBuffer     *phaseBuffer
	emergencyBuffer *emergencyBuffer
}

// newJunction 创建并初始化路口
// 功能：按配置创建调度器与信号状态机，生成初始排队并写入第一份快照
// 参数：ctx-任务上下文，rng-用于初始排队的随机数引擎
func newJunction(ctx entity.ITaskContext, rng *randengine.Engine) *Junction {
	c := ctx.RuntimeConfig().C
	initial, err := entity.ParseDirection(c.Signal.DefaultGreen)
	if err != nil {
		log.Panicf("invalid default green direction: %v", err)
	}
	j := &Junction{
		ctx:       ctx,
		id:        c.Signal.JunctionID,
		preempt:   c.Signal.Preempt,
		scheduler: trafficlight.NewPriorityScheduler(lo.FromPtrOr(c.Signal.ClearPerTick, config.DefaultClearPerTick)),
		signal:    trafficlight.NewSignalStateMachine(c.Signal.GreenTime, c.Signal.YellowTime, initial),
		live:      make(map[entity.Direction]int),
	}
	j.program = j.signal.Program(j.id)
	j.scheduler.Fill(rng, c.Queue.InitialMin, c.Queue.InitialMax, ctx.Clock().Time())
	j.writeSnapshot()
	return j
}

// prepare 准备阶段
// 功能：应用交互式接口写入的buffer，并写入新的快照
func (j *Junction) prepare() {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	if b := j.emergencyBuffer; b != nil {
		if b.set {
			j.scheduler.SetEmergency(b.direction)
			log.Infof("emergency set: %v", b.direction)
		} else {
			j.scheduler.ClearEmergency()
			log.Infof("emergency cleared")
		}
		j.emergencyBuffer = nil
	}
	if b := j.phaseBuffer; b != nil {
		if err := j.signal.SetPhase(b.index, b.remaining); err != nil {
			log.Warnf("set phase: %v", err)
		}
		j.phaseBuffer = nil
	}
	j.writeSnapshot()
}

// update 更新阶段
// 功能：本步每跨过一个整秒，信号状态机推进1秒；调度步执行一次调度并把排名交给状态机
// 说明：紧急方向获胜时总是抢占当前绿灯
func (j *Junction) update() {
	clock := j.ctx.Clock()
	for range clock.SecondTicks() {
		j.signal.Tick()
	}
	if !clock.IsScheduleStep() {
		return
	}
	dec := j.scheduler.Tick(clock.Time())
	j.signal.Serve(dec.Ranking, j.preempt || dec.Emergency, dec.Emergency)
	winner := dec.Winner
	j.scheduled = &winner
}

// writeSnapshot 写入快照，调用方需持有写锁或处于初始化阶段
func (j *Junction) writeSnapshot() {
	sig := j.signal.Snapshot()
	sizes := j.scheduler.Sizes()
	cleared := j.scheduler.Cleared()
	s := Status{
		JunctionID:    j.id,
		Time:          j.ctx.Clock().Time(),
		Active:        sig.Active,
		Phase:         sig.Phase,
		Countdown:     sig.Countdown,
		PhaseIndex:    j.signal.PhaseIndex(),
		Ticks:         j.scheduler.Ticks(),
		SignalChanges: sig.Changes,
		Scheduled:     j.scheduled,
	}
	if d, ok := j.scheduler.Emergency(); ok {
		s.Emergency = &d
	}
	for _, d := range entity.Directions {
		s.Directions[d] = DirectionStatus{
			Signal:   sig.Phases[d],
			Vehicles: sizes[d],
			Cleared:  cleared[d],
		}
	}
	j.snapshot = s
}

// ID 获取路口ID
func (j *Junction) ID() int32 {
	return j.id
}

// Status 最近一次prepare写入的状态快照
func (j *Junction) Status() Status {
	j.mtx.RLock()
	defer j.mtx.RUnlock()
	return j.snapshot
}

// Program 信号方案，调用方不得修改
func (j *Junction) Program() *mapv2.TrafficLight {
	return j.program
}

// SetPhase 设置信号相位，下一步生效
// 参数：index-信号方案中的相位索引，remaining-剩余时间（秒）
func (j *Junction) SetPhase(index int32, remaining float64) error {
	if index < 0 || index >= trafficlight.NumPhases {
		return fmt.Errorf("%w: %d not in [0, %d)", trafficlight.ErrPhaseIndex, index, trafficlight.NumPhases)
	}
	if remaining < 0 {
		return fmt.Errorf("invalid remaining time %v", remaining)
	}
	j.mtx.Lock()
	defer j.mtx.Unlock()
	j.phaseBuffer = &phaseBuffer{index: index, remaining: remaining}
	return nil
}

// SetEmergency 标记紧急方向，下一步生效
func (j *Junction) SetEmergency(d entity.Direction) {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	j.emergencyBuffer = &emergencyBuffer{direction: d, set: true}
}

// ClearEmergency 取消紧急状态，下一步生效
func (j *Junction) ClearEmergency() {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	j.emergencyBuffer = &emergencyBuffer{set: false}
}

// SetLiveCounts 覆盖实时车流计数
// 说明：只覆盖给出的方向，未给出的方向保持原值
func (j *Junction) SetLiveCounts(counts map[entity.Direction]int) {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	maps.Copy(j.live, counts)
}

// LiveCounts 实时车流计数的副本
func (j *Junction) LiveCounts() map[entity.Direction]int {
	j.mtx.RLock()
	defer j.mtx.RUnlock()
	return maps.Clone(j.live)
}
