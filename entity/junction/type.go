package junction

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/randengine"
)

// 依赖倒置，表达junction对调度器与信号状态机实现的接口需求

// 调度器接口
type IScheduler interface {
	Fill(rng *randengine.Engine, min, max int, t float64) // 初始排队
	Tick(t float64) trafficlight.Decision                 // 一次调度

	SetEmergency(d entity.Direction)     // 标记紧急方向
	ClearEmergency()                     // 取消紧急状态
	Emergency() (entity.Direction, bool) // 当前紧急方向
	Sizes() [entity.NumDirections]int    // 各方向排队长度
	Cleared() [entity.NumDirections]int  // 各方向累计放行
	Ticks() int                          // 累计调度次数
}

// 信号状态机接口
type ISignal interface {
	Tick() bool                                                // 推进1秒，返回是否切换灯色
	Serve(ranking []entity.Direction, preempt, emergency bool) // 接收调度排名
	SetPhase(index int32, remaining float64) error             // 修改相位到指定值
	Snapshot() trafficlight.SignalState                        // 状态快照
	PhaseIndex() int32                                         // 当前相位在程序中的索引
	Program(junctionID int32) *mapv2.TrafficLight              // 以相位程序描述的信号方案
}
