package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

// 默认值
const (
	DefaultStepInterval     = 1.
	DefaultGreenTime        = 30
	DefaultYellowTime       = 5
	DefaultGreen            = "north"
	DefaultScheduleInterval = 3.
	DefaultClearPerTick     = 2
	DefaultInitialMin       = 2
	DefaultInitialMax       = 6
	DefaultLiveWeight       = 0.6
	DefaultHistoricalWeight = 0.4
	DefaultNoiseMax         = 2
	DefaultIntervalMinutes  = 5
	DefaultForecastSteps    = 6
	DefaultFeedInterval     = 15.
	DefaultFeedTimeout      = 5.
)

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息
// 说明：将YAML配置补全默认值后的结果，供各模块只读使用
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：补全默认值并创建运行时配置对象
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
func NewRuntimeConfig(config Config) *RuntimeConfig {
	config.SetDefaults()
	return &RuntimeConfig{
		All: config,
		C:   config.Control,
	}
}

// Parse 解析并校验YAML配置
// 功能：严格模式反序列化（未知字段报错），补全默认值后按validate标签校验
// 参数：data-YAML文本
// 返回：补全默认值后的配置
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, fmt.Errorf("config unmarshal: %w", err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate 按validate标签校验配置
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validate: %w", err)
	}
	if c.Input.Historical != nil && c.Input.URI == "" {
		return fmt.Errorf("config validate: input.historical requires input.uri")
	}
	return nil
}

// SetDefaults 为未设置的配置项填入默认值
// 说明：数值项的零值视为未设置；clear_per_tick与noise_max为指针，只有缺省时才取默认值，显式写0有效
func (c *Config) SetDefaults() {
	ctl := &c.Control
	if ctl.Step.Interval == 0 {
		ctl.Step.Interval = DefaultStepInterval
	}
	s := &ctl.Signal
	if s.GreenTime == 0 {
		s.GreenTime = DefaultGreenTime
	}
	if s.YellowTime == 0 {
		s.YellowTime = DefaultYellowTime
	}
	if s.DefaultGreen == "" {
		s.DefaultGreen = DefaultGreen
	}
	if s.ScheduleInterval == 0 {
		s.ScheduleInterval = DefaultScheduleInterval
	}
	if s.ClearPerTick == nil {
		s.ClearPerTick = lo.ToPtr(DefaultClearPerTick)
	}
	q := &ctl.Queue
	if q.InitialMin == 0 && q.InitialMax == 0 {
		q.InitialMin, q.InitialMax = DefaultInitialMin, DefaultInitialMax
	}
	f := &ctl.Forecast
	if f.LiveWeight == 0 && f.HistoricalWeight == 0 {
		f.LiveWeight, f.HistoricalWeight = DefaultLiveWeight, DefaultHistoricalWeight
	}
	if f.NoiseMax == nil {
		f.NoiseMax = lo.ToPtr(DefaultNoiseMax)
	}
	if f.IntervalMinutes == 0 {
		f.IntervalMinutes = DefaultIntervalMinutes
	}
	if f.Steps == 0 {
		f.Steps = DefaultForecastSteps
	}
	if feed := c.Input.Feed; feed != nil {
		if feed.Interval == 0 {
			feed.Interval = DefaultFeedInterval
		}
		if feed.Timeout == 0 {
			feed.Timeout = DefaultFeedTimeout
		}
	}
}
