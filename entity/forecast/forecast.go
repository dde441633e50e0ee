package forecast

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/container"
)

// Historical 各方向的历史参考序列，第k个值对应第k+1个预测步
type Historical [entity.NumDirections][]int

// DefaultHistorical 内置参考序列（6个5分钟步长）
func DefaultHistorical() Historical {
	return Historical{
		entity.North: {8, 10, 12, 14, 15, 16},
		entity.South: {6, 9, 11, 13, 14, 15},
		entity.East:  {4, 5, 7, 8, 9, 10},
		entity.West:  {3, 4, 6, 7, 8, 9},
	}
}

// HistoricalFromNames 将按方向名给出的序列转换为Historical，未给出的方向保持base中的值
func HistoricalFromNames(base Historical, series map[string][]int) (Historical, error) {
	out := base
	for name, values := range series {
		d, err := entity.ParseDirection(name)
		if err != nil {
			return out, err
		}
		out[d] = append([]int(nil), values...)
	}
	return out, nil
}

// at 第step步的历史值，超出序列长度时为0
func (h Historical) at(d entity.Direction, step int) int {
	if step < 0 || step >= len(h[d]) {
		return 0
	}
	return h[d][step]
}

// Noise 噪声来源，由调用方注入以便复现
type Noise interface {
	Intn(n int) int
}

// Sample 单个预测步
type Sample struct {
	Offset        int                       // 距当前的分钟数
	Predicted     [entity.NumDirections]int // 各方向预测值
	MaxCongestion entity.Direction          // 预测值最大的方向
}

// Label 时间标签，例如"5m"
func (s Sample) Label() string {
	return fmt.Sprintf("%dm", s.Offset)
}

func (s Sample) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"time":                   s.Label(),
		"maxCongestionDirection": s.MaxCongestion,
	}
	for _, d := range entity.Directions {
		m[d.String()] = s.Predicted[d]
	}
	return json.Marshal(m)
}

// Forecaster 短时拥堵预测
// 功能：将实时计数与历史序列按权重混合，叠加非负小噪声，逐步给出各方向预测与最大拥堵方向
// 说明：每次调用完全重新计算，不保留任何状态，可并发调用（噪声来源需自行保证线程安全）
type Forecaster struct {
	params     config.Forecast
	historical Historical
}

// New 创建预测器
// 参数：params-预测参数（权重、噪声上限、步长、步数），historical-历史序列
func New(params config.Forecast, historical Historical) *Forecaster {
	return &Forecaster{params: params, historical: historical}
}

// Historical 当前使用的历史序列
func (f *Forecaster) Historical() Historical {
	return f.historical
}

// Forecast 预测
// 参数：live-各方向实时计数（缺失视为0），noise-噪声来源（nil表示不加噪声）
// 返回：Steps个按时间顺序排列的预测步，第k步偏移k*IntervalMinutes分钟
// 算法说明：
// 1. predicted = floor(live*LiveWeight + historical[k-1]*HistoricalWeight + noise)，noise∈[0, NoiseMax]
// 2. 四个预测值按固定方向顺序压入大顶堆，堆顶即最大拥堵方向（相同时先入者优先）
func (f *Forecaster) Forecast(live map[entity.Direction]int, noise Noise) []Sample {
	liveArr := entity.CountsArray(live)
	noiseMax := lo.FromPtr(f.params.NoiseMax)
	samples := make([]Sample, 0, f.params.Steps)
	for k := 1; k <= f.params.Steps; k++ {
		s := Sample{Offset: k * f.params.IntervalMinutes}
		maxHeap := container.NewPriorityQueue[entity.Direction]()
		for _, d := range entity.Directions {
			n := 0
			if noise != nil && noiseMax > 0 {
				n = noise.Intn(noiseMax + 1)
			}
			// 噪声为整数，floor(x+n) == floor(x)+n
			s.Predicted[d] = f.Base(liveArr[d], d, k) + n
			maxHeap.HeapPush(d, -float64(s.Predicted[d]))
		}
		s.MaxCongestion = maxHeap.First()
		samples = append(samples, s)
	}
	return samples
}

// Base 不含噪声的确定性部分：floor(live*LiveWeight + historical*HistoricalWeight)
// 参数：live-实时计数，d-方向，k-预测步（从1开始）
func (f *Forecaster) Base(live int, d entity.Direction, k int) int {
	v := float64(live)*f.params.LiveWeight + float64(f.historical.at(d, k-1))*f.params.HistoricalWeight
	return int(math.Floor(v))
}

// Peak 整个预测窗口内出现次数最多的最大拥堵方向
func Peak(samples []Sample) (entity.Direction, bool) {
	if len(samples) == 0 {
		return entity.North, false
	}
	counts := lo.CountValues(lo.Map(samples, func(s Sample, _ int) entity.Direction {
		return s.MaxCongestion
	}))
	best := samples[0].MaxCongestion
	for _, d := range entity.Directions {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best, true
}
