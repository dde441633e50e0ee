package config

// InputPath 指定MongoDB中数据来源的配置
type InputPath struct {
	DB  string `yaml:"db" validate:"required"`  // 数据库名
	Col string `yaml:"col" validate:"required"` // 集合名
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// MQTT 实时车流数据订阅配置
type MQTT struct {
	Broker   string `yaml:"broker" validate:"required,url"` // 例如tcp://localhost:1883
	Topic    string `yaml:"topic" validate:"required"`
	ClientID string `yaml:"client_id,omitempty"`
	QoS      byte   `yaml:"qos,omitempty" validate:"lte=2"`
}

// Feed 实时车流数据来源配置
// 说明：URL与MQTT均为空时不启动任何来源，实时数据只能通过HTTP接口写入
type Feed struct {
	URL      string  `yaml:"url,omitempty" validate:"omitempty,url"`
	Interval float64 `yaml:"interval,omitempty" validate:"gte=0"` // 轮询间隔（秒），默认15
	Timeout  float64 `yaml:"timeout,omitempty" validate:"gte=0"`  // 单次请求超时（秒），默认5
	MQTT     *MQTT   `yaml:"mqtt,omitempty"`
}

// Input 指定模拟器所有输入数据的配置项
// 说明：历史车流序列的优先级为 MongoDB > historical_series > 内置参考序列
type Input struct {
	URI              string           `yaml:"uri,omitempty"`                                                                                   // MongoDB连接字符串
	Historical       *InputPath       `yaml:"historical,omitempty"`                                                                            // 历史车流序列集合
	HistoricalSeries map[string][]int `yaml:"historical_series,omitempty" validate:"dive,keys,oneof=north south east west,endkeys,dive,gte=0"` // 直接给出的历史序列，键为方向名
	Feed             *Feed            `yaml:"feed,omitempty"`
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start" validate:"gte=0"`    // 开始步数
	Total    int32   `yaml:"total" validate:"gte=0"`    // 总步数，0表示不限
	Interval float64 `yaml:"interval" validate:"gte=0"` // 每步的时间间隔（秒），默认1
}

// Signal 信控配置
type Signal struct {
	JunctionID       int32   `yaml:"junction_id,omitempty"`                                                    // 对外暴露的路口ID
	GreenTime        int     `yaml:"green_time,omitempty" validate:"gte=0"`                                    // 绿灯时长（秒），默认30
	YellowTime       int     `yaml:"yellow_time,omitempty" validate:"gte=0"`                                   // 黄灯时长（秒），默认5
	DefaultGreen     string  `yaml:"default_green,omitempty" validate:"omitempty,oneof=north south east west"` // 初始绿灯方向，默认north
	ScheduleInterval float64 `yaml:"schedule_interval,omitempty" validate:"gte=0"`                             // 调度间隔（秒），默认3
	ClearPerTick     *int    `yaml:"clear_per_tick,omitempty" validate:"omitempty,gte=0"`                      // 每次调度最多放行车辆数，默认2，显式0表示不放行
	Preempt          bool    `yaml:"preempt,omitempty"`                                                        // 调度结果与当前绿灯不同时是否立即进入黄灯
}

// Queue 初始排队配置
type Queue struct {
	InitialMin int `yaml:"initial_min,omitempty" validate:"gte=0"`
	InitialMax int `yaml:"initial_max,omitempty" validate:"gte=0,gtefield=InitialMin"`
}

// Forecast 拥堵预测配置
type Forecast struct {
	LiveWeight       float64 `yaml:"live_weight,omitempty" validate:"gte=0"`
	HistoricalWeight float64 `yaml:"historical_weight,omitempty" validate:"gte=0"`
	NoiseMax         *int    `yaml:"noise_max,omitempty" validate:"omitempty,gte=0"` // 噪声上限（含），默认2，显式0表示不加噪声
	IntervalMinutes  int     `yaml:"interval_minutes,omitempty" validate:"gte=0"`    // 预测间隔（分钟），默认5
	Steps            int     `yaml:"steps,omitempty" validate:"gte=0"`               // 预测步数，默认6
}

// Control 模拟器控制配置
type Control struct {
	Step     ControlStep `yaml:"step"`
	Signal   Signal      `yaml:"signal"`
	Queue    Queue       `yaml:"queue"`
	Forecast Forecast    `yaml:"forecast"`
	Seed     uint64      `yaml:"seed,omitempty"`     // 随机种子
	Realtime bool        `yaml:"realtime,omitempty"` // 按墙钟时间推进模拟步
}

// Config YAML配置文件的根结构
type Config struct {
	Input   Input   `yaml:"input"`   // 输入
	Control Control `yaml:"control"` // 模拟过程控制
}
