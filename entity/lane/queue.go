package lane

import (
	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/container"
)

// Vehicle 排队车辆标识
// 功能：不透明的车辆令牌，只记录ID、进口方向与到达时间
type Vehicle struct {
	ID        uuid.UUID        `json:"id"`
	Direction entity.Direction `json:"direction"`
	ArrivalT  float64          `json:"arrivalT"` // 到达时间（仿真秒）
}

// VehicleQueue 路口四个进口的车辆排队
// 功能：每个方向一个FIFO队列，入队永不失败，出队不会出现负数
// 说明：非线程安全，由调度器独占并负责同步
type VehicleQueue struct {
	queues [entity.NumDirections]*container.Queue[Vehicle]
}

// NewVehicleQueue 创建空的排队
func NewVehicleQueue() *VehicleQueue {
	q := &VehicleQueue{}
	for i := range q.queues {
		q.queues[i] = container.NewQueue[Vehicle]()
	}
	return q
}

// Enqueue 车辆加入指定方向队尾
func (q *VehicleQueue) Enqueue(d entity.Direction, v Vehicle) {
	v.Direction = d
	q.queues[d].PushBack(v)
}

// Arrive 生成一辆新车并加入指定方向队尾
// 参数：d-方向，t-到达时间
// 返回：新车令牌
func (q *VehicleQueue) Arrive(d entity.Direction, t float64) Vehicle {
	v := Vehicle{ID: uuid.New(), Direction: d, ArrivalT: t}
	q.queues[d].PushBack(v)
	return v
}

// DequeueUpTo 从指定方向队首移除至多n辆车
// 返回：实际移除数量（0..n），队列为空或n<=0时为0
func (q *VehicleQueue) DequeueUpTo(d entity.Direction, n int) int {
	removed := 0
	for ; removed < n; removed++ {
		if _, ok := q.queues[d].PopFront(); !ok {
			break
		}
	}
	return removed
}

// Size 指定方向当前排队长度，O(1)
func (q *VehicleQueue) Size(d entity.Direction) int {
	return q.queues[d].Len()
}

// Sizes 按固定方向顺序返回全部排队长度
func (q *VehicleQueue) Sizes() [entity.NumDirections]int {
	var out [entity.NumDirections]int
	for _, d := range entity.Directions {
		out[d] = q.queues[d].Len()
	}
	return out
}

// Front 查看指定方向队首车辆
func (q *VehicleQueue) Front(d entity.Direction) (Vehicle, bool) {
	return q.queues[d].Front()
}

// Vehicles 按队首到队尾的顺序复制指定方向的全部车辆
func (q *VehicleQueue) Vehicles(d entity.Direction) []Vehicle {
	return q.queues[d].Values()
}
