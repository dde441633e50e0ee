// 提供基于最大排队长度的信号调度
// 每个调度节拍计算四个方向的优先级，排队最长者获得通行权，紧急方向优先于一切排队
package trafficlight

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/randengine"
)

// EmergencyPriority 紧急方向在排队长度之上额外获得的优先级
const EmergencyPriority = 1000

// Decision 一次调度节拍的结果
type Decision struct {
	Winner    entity.Direction          // 获得通行权的方向
	Ranking   []entity.Direction        // 全部方向按优先级从高到低排列，Ranking[0]==Winner
	Cleared   [entity.NumDirections]int // 本次各方向实际放行车辆数
	Arrived   [entity.NumDirections]int // 本次各方向新到达车辆数
	Sizes     [entity.NumDirections]int // 调度后的排队长度
	Emergency bool                      // Winner是否因紧急状态获胜
}

// OptimizeResult 基于外部计数的一次性选择结果
type OptimizeResult struct {
	Green     entity.Direction
	Emergency bool
	Ranking   []entity.Direction
}

// PriorityScheduler 优先级调度器
// 功能：独占路口的车辆排队，每个调度节拍选出排队最长的方向放行，其余方向各到达一辆车
// 说明：非线程安全，由junction串行调用
type PriorityScheduler struct {
	queue        *lane.VehicleQueue
	clearPerTick int

	cleared      [entity.NumDirections]int // 累计放行车辆数
	ticks        int                       // 累计调度次数
	emergency    entity.Direction
	hasEmergency bool
}

// NewPriorityScheduler 创建调度器
// 参数：clearPerTick-每次调度获胜方向最多放行的车辆数
func NewPriorityScheduler(clearPerTick int) *PriorityScheduler {
	return &PriorityScheduler{
		queue:        lane.NewVehicleQueue(),
		clearPerTick: clearPerTick,
	}
}

// Fill 为每个方向生成初始排队
// 参数：rng-随机数引擎，min/max-每个方向初始车辆数的闭区间，t-到达时间
func (s *PriorityScheduler) Fill(rng *randengine.Engine, min, max int, t float64) {
	for _, d := range entity.Directions {
		n := rng.IntRange(min, max)
		for range n {
			s.queue.Arrive(d, t)
		}
	}
	log.Debugf("initial queues %v", s.queue.Sizes())
}

// SetEmergency 标记紧急方向，直到ClearEmergency前该方向总是优先
func (s *PriorityScheduler) SetEmergency(d entity.Direction) {
	s.emergency, s.hasEmergency = d, true
}

// ClearEmergency 取消紧急状态
func (s *PriorityScheduler) ClearEmergency() {
	s.hasEmergency = false
}

// Emergency 当前紧急方向
func (s *PriorityScheduler) Emergency() (entity.Direction, bool) {
	return s.emergency, s.hasEmergency
}

// Tick 执行一次调度
// 参数：t-当前仿真时间，用作新到达车辆的到达时间
// 返回：调度结果
// 算法说明：
// 1. 以排队长度为键建立大顶堆（小顶堆存负值），紧急方向额外加EmergencyPriority与总排队数
// 2. 弹出堆顶作为获胜方向，其余出堆顺序构成完整排名
// 3. 获胜方向放行至多clearPerTick辆车，实际放行数计入累计放行
// 4. 其余每个方向到达一辆新车
func (s *PriorityScheduler) Tick(t float64) Decision {
	sizes := s.queue.Sizes()
	var emergencies []entity.Direction
	if s.hasEmergency {
		emergencies = []entity.Direction{s.emergency}
	}
	ranking := rank(sizes, emergencies)
	winner := ranking[0]

	dec := Decision{
		Winner:    winner,
		Ranking:   ranking,
		Emergency: lo.Contains(emergencies, winner),
	}
	n := s.queue.DequeueUpTo(winner, s.clearPerTick)
	dec.Cleared[winner] = n
	s.cleared[winner] += n
	for _, d := range entity.Directions {
		if d == winner {
			continue
		}
		s.queue.Arrive(d, t)
		dec.Arrived[d] = 1
	}
	dec.Sizes = s.queue.Sizes()
	s.ticks++
	log.Debugf("tick %d: serve %v (cleared %d, emergency %v), queues %v", s.ticks, winner, n, dec.Emergency, dec.Sizes)
	return dec
}

// Sizes 当前各方向排队长度
func (s *PriorityScheduler) Sizes() [entity.NumDirections]int {
	return s.queue.Sizes()
}

// Cleared 各方向累计放行车辆数
func (s *PriorityScheduler) Cleared() [entity.NumDirections]int {
	return s.cleared
}

// Ticks 累计调度次数
func (s *PriorityScheduler) Ticks() int {
	return s.ticks
}

// Vehicles 指定方向排队车辆（队首在前）
func (s *PriorityScheduler) Vehicles(d entity.Direction) []lane.Vehicle {
	return s.queue.Vehicles(d)
}

// Optimize 根据外部给出的计数选择绿灯方向，不修改任何状态
// 参数：counts-各方向计数（缺失视为0），emergencies-紧急方向
func Optimize(counts map[entity.Direction]int, emergencies ...entity.Direction) OptimizeResult {
	ranking := rank(entity.CountsArray(counts), emergencies)
	return OptimizeResult{
		Green:     ranking[0],
		Emergency: lo.Contains(emergencies, ranking[0]),
		Ranking:   ranking,
	}
}

// rank 按优先级从高到低排列全部方向，相同优先级按固定方向顺序
func rank(counts [entity.NumDirections]int, emergencies []entity.Direction) []entity.Direction {
	boost := EmergencyPriority + lo.Sum(counts[:])
	pq := container.NewPriorityQueue[entity.Direction]()
	for _, d := range entity.Directions {
		key := counts[d]
		if lo.Contains(emergencies, d) {
			key += boost
		}
		pq.Push(d, -float64(key)) // 小顶堆，键越大越靠前
	}
	pq.Heapify()
	return pq.Drain()
}
