package junction

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2connect "git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/randengine"
)

// Junction管理器
type JunctionManager struct {
	mapv2connect.UnimplementedTrafficLightServiceHandler

	ctx entity.ITaskContext

	data      map[int32]*Junction
	junctions []*Junction
}

// NewManager 创建Junction管理器实例
// 参数：ctx-任务上下文
func NewManager(ctx entity.ITaskContext) *JunctionManager {
	return &JunctionManager{
		ctx:       ctx,
		data:      make(map[int32]*Junction),
		junctions: make([]*Junction, 0),
	}
}

// Init 按配置初始化路口
// 参数：rng-用于初始排队的随机数引擎
func (m *JunctionManager) Init(rng *randengine.Engine) {
	m.junctions = []*Junction{newJunction(m.ctx, rng)}
	m.data = lo.SliceToMap(m.junctions, func(j *Junction) (int32, *Junction) {
		return j.id, j
	})
	log.Infof("junction %d initialized with queues %v", m.junctions[0].id, m.junctions[0].scheduler.Sizes())
}

// Main 模拟的路口
func (m *JunctionManager) Main() *Junction {
	return m.junctions[0]
}

// Get 根据ID获取Junction实例
// 返回：不存在时返回ErrUnknownJunction
func (m *JunctionManager) Get(id int32) (*Junction, error) {
	if junction, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownJunction, id)
	} else {
		return junction, nil
	}
}

// Prepare 准备阶段，应用buffer并写入快照
func (m *JunctionManager) Prepare() {
	parallel.GoFor(m.junctions, func(j *Junction) { j.prepare() })
}

// Update 更新阶段，推进信号与调度
func (m *JunctionManager) Update() {
	parallel.GoFor(m.junctions, func(j *Junction) { j.update() })
}
