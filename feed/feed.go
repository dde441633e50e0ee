// 实时车流计数来源：HTTP轮询与MQTT订阅
// 获取失败只记录日志，本周期不更新
package feed

import (
	"encoding/json"
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
)

// Sink 实时计数的接收方
type Sink interface {
	SetLiveCounts(counts map[entity.Direction]int)
}

// Decode 解析形如{"north": 12, "east": 3}的计数，方向名不区分大小写
// 返回：未知方向名或负数计数时返回错误
func Decode(data []byte) (map[entity.Direction]int, error) {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode live counts: %w", err)
	}
	counts, err := entity.ParseCounts(raw)
	if err != nil {
		return nil, err
	}
	for d, n := range counts {
		if n < 0 {
			return nil, fmt.Errorf("negative live count %d for %v", n, d)
		}
	}
	return counts, nil
}
