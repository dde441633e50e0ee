// crossroad：四向路口信控模拟服务
// 每个模拟步推进信号倒计时，每个调度间隔按排队长度选出放行方向；
// 通过gRPC提供信号灯与时钟服务，通过JSON HTTP接口提供状态、导航、预测与紧急控制
package main

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/task"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
)

var (
	// 为空时独立运行，每步不与syncer同步
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	job        = flag.String("job", "job0", "the name of the whole simulation task")
	// connect服务：city.map.v2.TrafficLightService（信号方案与相位）、city.clock.v1.ClockService（模拟时间）
	grpcAddr = flag.String("listen", ":51102", "TrafficLightService and ClockService listening address")
	// /api/* 与 /ws，为空时不启动
	httpAddr   = flag.String("http", ":8080", "JSON HTTP API and websocket listening address (empty means disable)")
	configPath = flag.String("config", "", "YAML config file path")
	configData = flag.String("config-data", "", "base64 encoded YAML config, used when -config is empty")

	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	// debug级别输出每次调度的排队与放行、每次灯色切换
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "crossroad")
)

// loadConfig 读取并校验配置，-config优先于-config-data
func loadConfig() (config.Config, error) {
	var file []byte
	var err error
	switch {
	case *configPath != "":
		if file, err = os.ReadFile(*configPath); err != nil {
			return config.Config{}, fmt.Errorf("read %s: %w", *configPath, err)
		}
	case *configData != "":
		if file, err = base64.StdEncoding.DecodeString(*configData); err != nil {
			return config.Config{}, fmt.Errorf("decode config data: %w", err)
		}
	default:
		return config.Config{}, errors.New("config file or config data must be specified")
	}
	return config.Parse(file)
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}

	c, err := loadConfig()
	if err != nil {
		log.Panicf("config: %v", err)
	}
	sig := c.Control.Signal
	log.Infof(
		"junction %d: green %ds, yellow %ds, schedule every %.1fs, initial green %s, preempt %v",
		sig.JunctionID, sig.GreenTime, sig.YellowTime, sig.ScheduleInterval, sig.DefaultGreen, sig.Preempt,
	)
	if feed := c.Input.Feed; feed != nil {
		log.Infof("live feed: url=%q mqtt=%v", feed.URL, feed.MQTT != nil)
	}

	sidecar := syncer.NewSidecar(task.SelfName, *grpcAddr, *syncerAddr)
	t := task.NewContext(*job, *httpAddr, c, sidecar, true)
	t.Run()
}
