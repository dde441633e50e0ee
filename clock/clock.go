package clock

import (
	"fmt"
	"math"
	"sync"

	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
)

// 整秒判断的浮点容差
const secondEpsilon = 1e-9

// Clock 仿真时钟管理器
// 功能：管理仿真系统的时间推进，区分两种节拍：每个整秒一次的相位倒计时节拍与每若干步一次的调度节拍
// 说明：维护当前仿真时间、步数等信息，提供时间格式化和RPC服务
type Clock struct {
	clockv1connect.UnimplementedClockServiceHandler

	DT             float64 // 每个模拟步时间间隔（秒）
	SCHEDULE_EVERY int32   // 每多少步执行一次调度，即调度节拍
	START_STEP     int32   // 起始步
	END_STEP       int32   // 结束步，模拟区间[START, END)

	T            float64 // 当前时间（秒）
	InternalStep int32   // 当前步数

	mtx sync.RWMutex
}

// New 根据配置创建新的时钟实例
// 参数：stepConfig-控制步配置，scheduleInterval-调度间隔（秒）
// 返回：初始化完成的时钟实例
// 算法说明：
// 1. 调度间隔按步长取整，至少为1步
// 2. 总步数为0时模拟不设终点
func New(stepConfig config.ControlStep, scheduleInterval float64) *Clock {
	dt := stepConfig.Interval
	if dt <= 0 {
		dt = config.DefaultStepInterval
	}
	every := int32(math.Round(scheduleInterval / dt))
	if every < 1 {
		every = 1
	}
	endStep := int32(math.MaxInt32)
	if stepConfig.Total > 0 {
		endStep = stepConfig.Start + stepConfig.Total
	}
	c := &Clock{
		DT:             dt,
		SCHEDULE_EVERY: every,
		START_STEP:     stepConfig.Start,
		END_STEP:       endStep,
	}
	c.Init()
	return c
}

// Init 重置时钟状态到起始步
func (c *Clock) Init() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.InternalStep = c.START_STEP
	c.T = float64(c.InternalStep) * c.DT
}

// Advance 推进一步
// 返回：推进后的步数
func (c *Clock) Advance() int32 {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.InternalStep++
	c.T = float64(c.InternalStep) * c.DT
	return c.InternalStep
}

// IsScheduleStep 当前步是否需要执行调度
func (c *Clock) IsScheduleStep() bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return (c.InternalStep-c.START_STEP)%c.SCHEDULE_EVERY == 0
}

// SecondTicks 最近一次Advance跨过的整秒数
// 说明：步长小于1秒时多数步为0，步长大于1秒时一步可跨过多秒
func (c *Clock) SecondTicks() int {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	cur := math.Floor(c.T + secondEpsilon)
	prev := math.Floor(float64(c.InternalStep-1)*c.DT + secondEpsilon)
	return int(cur - prev)
}

// Finished 是否已到达结束步
func (c *Clock) Finished() bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.InternalStep+1 >= c.END_STEP
}

// Time 当前时间（秒）
func (c *Clock) Time() float64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.T
}

// String 获取时钟的字符串表示（HH:MM:SS）
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	t := c.Time()
	hour := int(t) / 3600
	minute := int(t) % 3600 / 60
	second := t - float64(hour*3600+minute*60)
	return hour, minute, second
}
