package task

import (
	"flag"
	"time"
)

const (
	SelfName = "crossroad" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 算法说明：
// 1. 更新时钟：增加内部步数并计算当前时间
// 2. 心跳日志：定期输出系统状态信息
// 3. 路口准备：应用交互式写入并写入快照
// 4. 向websocket客户端推送快照
func (ctx *Context) prepare() {
	step := ctx.clock.Advance()

	if *heartBeatInterval > 0 && step%int32(*heartBeatInterval) == 0 {
		s := ctx.Status()
		log.Infof(
			"STEP: %d(%s) active=%v countdown=%d tick=%d",
			step, ctx.clock, s.Active, s.Countdown, s.Ticks,
		)
	}

	ctx.junctionManager.Prepare()
	if ctx.web != nil {
		ctx.web.Hub().Broadcast(ctx.Status())
	}
}

// update 更新阶段，每步执行一次
// 功能：信号倒计时每个模拟整秒推进一次，调度每SCHEDULE_EVERY步执行一次
func (ctx *Context) update() {
	ctx.junctionManager.Update()
}

// Run 运行
// 说明：control.realtime为true时每步至少间隔一个步长的墙钟时间
func (ctx *Context) Run() {
	// 初始化
	ctx.Init()
	// init syncer
	ctx.sidecar.Step(false)
	var pace <-chan time.Time
	if ctx.runtimeConfig.C.Realtime {
		ticker := time.NewTicker(time.Duration(ctx.clock.DT * float64(time.Second)))
		defer ticker.Stop()
		pace = ticker.C
	}
	for {
		ctx.prepare()
		// 通知准备阶段完成
		log.Debugf("step %d: prepare complete and call NotifyStepReady", ctx.clock.InternalStep)
		ctx.sidecar.NotifyStepReady()
		ctx.update()
		log.Debugf("step %d: update complete", ctx.clock.InternalStep)
		close := ctx.sidecar.Step(ctx.clock.Finished())
		if close || ctx.closed.Load() {
			break
		}
		if pace != nil {
			<-pace
		}
	}
	log.Infof("engine complete")
	ctx.Close()
}
