package task

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/clock"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/forecast"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/road"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/route"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/feed"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/randengine"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/web"
)

// waitForServerReady 等待服务器就绪
// 功能：通过HTTP请求检查服务器是否已经启动并可以响应
// 参数：addr-服务器地址，retryCount-重试次数，interval-重试间隔
// 返回：错误信息，如果服务器就绪则返回nil
func waitForServerReady(addr string, retryCount int, interval time.Duration) error {
	client := &http.Client{
		Timeout: interval,
	}
	for range retryCount {
		resp, err := client.Get(addr)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("server `%v` did not become ready after %d retries", addr, retryCount)
}

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态，替代全局变量
// 说明：管理时钟、路口、路网、预测器、实时数据来源与HTTP接口
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，处理分布式模式下相关调用，包括与syncer、其他服务的交互
	sidecar *syncer.Sidecar
	// sidecar close channel，未启动sidecar服务时为nil
	sidecarCloseCh chan struct{}

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig
	// 用于初始化的输入
	initRes *input.Input

	// Junction管理器
	junctionManager *junction.JunctionManager
	// 路网图
	graph *road.Graph
	// 拥堵预测
	forecaster *forecast.Forecaster
	// 模拟用随机数（初始排队），只在模拟循环中使用
	rng *randengine.Engine
	// 接口用随机数（预测噪声、紧急方向），线程安全
	apiRng *randengine.Engine

	// HTTP接口，地址为空时为nil
	httpAddr string
	web      *web.Server
	// 实时数据来源
	cancelFeeds context.CancelFunc
	subscriber  *feed.Subscriber
}

// newContext 创建不含sidecar的任务上下文
// 参数：job-任务名，httpAddr-HTTP接口地址（空表示不启动），c-配置对象
func newContext(job string, httpAddr string, c config.Config) *Context {
	ctx := &Context{
		job:      job,
		httpAddr: httpAddr,
	}
	ctx.runtimeConfig = config.NewRuntimeConfig(c)
	rc := ctx.runtimeConfig.C
	ctx.clock = clock.New(rc.Step, rc.Signal.ScheduleInterval)

	// 下载所有模拟器启动所需的数据
	ctx.initRes = input.Init(ctx.runtimeConfig.All)

	ctx.rng = randengine.New(rc.Seed)
	ctx.apiRng = randengine.New(rc.Seed + 1)
	ctx.graph = road.Default()
	ctx.forecaster = forecast.New(rc.Forecast, ctx.initRes.Historical)
	ctx.junctionManager = junction.NewManager(ctx)
	return ctx
}

// NewContext 创建新的仿真任务上下文
// 功能：初始化仿真系统的所有组件和配置
// 参数：
//   - job: 任务名称
//   - httpAddr: JSON HTTP接口地址，空表示不启动
//   - c: 配置对象
//   - sidecar: 外部sidecar实例
//   - startSidecarServe: 是否启动sidecar服务
//
// 返回：初始化完成的Context实例
// 算法说明：
// 1. 创建Context实例，初始化时钟、输入、路网、预测器与路口管理器
// 2. 注册RPC服务到sidecar
// 3. 启动sidecar服务（如果需要）
func NewContext(
	job string,
	httpAddr string,
	c config.Config,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
) *Context {
	ctx := newContext(job, httpAddr, c)
	ctx.sidecar = sidecar

	ctx.clock.Register(ctx.sidecar)
	ctx.junctionManager.Register(ctx.sidecar)

	// sidecar协程，用于提供gRPC服务
	if startSidecarServe {
		ctx.sidecarCloseCh = make(chan struct{})
		go func() {
			err := ctx.sidecar.Serve()
			if err != nil {
				log.Panicf("failed to serve: %v", err)
			}
			ctx.sidecarCloseCh <- struct{}{}
		}()
	}

	return ctx
}

func (ctx *Context) GetInput() *input.Input {
	return ctx.initRes
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) JunctionManager() *junction.JunctionManager {
	return ctx.junctionManager
}

// Init 初始化路口并启动实时数据来源与HTTP接口
func (ctx *Context) Init() {
	ctx.clock.Init()
	ctx.junctionManager.Init(ctx.rng)
	log.Infof("road graph: %v", ctx.graph.Adjacency())

	feedCtx, cancel := context.WithCancel(context.Background())
	ctx.cancelFeeds = cancel
	if f := ctx.runtimeConfig.All.Input.Feed; f != nil {
		if f.URL != "" {
			go feed.NewPoller(*f, ctx).Run(feedCtx)
		}
		if f.MQTT != nil {
			ctx.subscriber = feed.NewSubscriber(*f.MQTT, ctx)
			if err := ctx.subscriber.Start(); err != nil {
				// 与HTTP轮询一致，实时数据不可用时模拟继续
				log.Errorf("live feed mqtt: %v", err)
			}
		}
	}

	if ctx.httpAddr != "" {
		ctx.web = web.New(ctx)
		ctx.web.Start(ctx.httpAddr)
		if err := waitForServerReady(readyURL(ctx.httpAddr), 10, 100*time.Millisecond); err != nil {
			log.Panicf("http api: %v", err)
		}
	}
}

// readyURL 就绪检查地址，监听地址省略主机名时使用localhost
func readyURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/signal-status"
}

// Status 路口状态快照
func (ctx *Context) Status() junction.Status {
	return ctx.junctionManager.Main().Status()
}

// Route 最短路径
func (ctx *Context) Route(from, to entity.Direction) route.Result {
	return route.Search(ctx.graph, from, to)
}

// Forecast 基于当前实时计数的拥堵预测
func (ctx *Context) Forecast() []forecast.Sample {
	return ctx.forecaster.Forecast(ctx.junctionManager.Main().LiveCounts(), ctx.apiRng.Locked())
}

// SetLiveCounts 写入实时计数（实现feed.Sink）
func (ctx *Context) SetLiveCounts(counts map[entity.Direction]int) {
	ctx.junctionManager.Main().SetLiveCounts(counts)
}

// SetEmergency 标记紧急方向
func (ctx *Context) SetEmergency(d entity.Direction) {
	ctx.junctionManager.Main().SetEmergency(d)
}

// ClearEmergency 取消紧急状态
func (ctx *Context) ClearEmergency() {
	ctx.junctionManager.Main().ClearEmergency()
}

// PickEmergency 在候选方向中随机选择一个
func (ctx *Context) PickEmergency(candidates []entity.Direction) entity.Direction {
	return candidates[ctx.apiRng.IntnSafe(len(candidates))]
}

// Close 停止实时数据来源、HTTP接口与sidecar
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	if ctx.cancelFeeds != nil {
		ctx.cancelFeeds()
	}
	if ctx.subscriber != nil {
		ctx.subscriber.Close()
	}
	if ctx.web != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ctx.web.Shutdown(shutdownCtx); err != nil {
			log.Warnf("http api shutdown: %v", err)
		}
	}
	if ctx.sidecar != nil {
		ctx.sidecar.Close()
		// wait for graceful stop
		if ctx.sidecarCloseCh != nil {
			<-ctx.sidecarCloseCh
		}
	}
}
