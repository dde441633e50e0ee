package route

import (
	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/road"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/container"
)

// Result 路径规划结果
type Result struct {
	Path      []entity.Direction `json:"path"`      // 起点到终点的方向序列，不可达时为空
	Cost      int                `json:"totalCost"` // 路径总权重，不可达时无意义
	Reachable bool               `json:"-"`
}

// ShortestPath 最短路径
// 功能：在路网图上用Dijkstra算法求start到end的最短路径
// 返回：方向序列，不可达时返回空序列
func ShortestPath(g *road.Graph, start, end entity.Direction) []entity.Direction {
	return Search(g, start, end).Path
}

// Search 最短路径（带总权重）
// 功能：Dijkstra算法，纯函数，不修改路网图，可并发调用
// 参数：g-路网图，start-起点，end-终点
// 返回：路径规划结果
// 算法说明：
// 1. 初始化：dist(start)=0，其余为INF，所有前驱为空
// 2. 反复取出未访问节点中暂定距离最小者（距离相同时按入堆顺序），取到end即停止
// 3. 对出边松弛，只有严格更短时才更新距离与前驱
// 4. 从end沿前驱回溯，终点可达时在序列前补上start
// 说明：start==end时回溯为空、距离为0，结果为[start]
func Search(g *road.Graph, start, end entity.Direction) Result {
	var dist [entity.NumDirections]float64
	var prev [entity.NumDirections]entity.Direction
	var hasPrev, visited [entity.NumDirections]bool
	for i := range dist {
		dist[i] = mathutil.INF
	}
	dist[start] = 0

	pq := container.NewPriorityQueue[entity.Direction]()
	pq.HeapPush(start, 0)
	for pq.Len() > 0 {
		cur, d := pq.HeapPop()
		if visited[cur] || d > dist[cur] {
			continue
		}
		visited[cur] = true
		if cur == end {
			break
		}
		for _, e := range g.Edges(cur) {
			alt := dist[cur] + float64(e.Weight)
			if alt < dist[e.To] {
				dist[e.To] = alt
				prev[e.To] = cur
				hasPrev[e.To] = true
				pq.HeapPush(e.To, alt)
			}
		}
	}

	if dist[end] >= mathutil.INF {
		return Result{Path: []entity.Direction{}}
	}
	path := make([]entity.Direction, 0, entity.NumDirections)
	for u := end; hasPrev[u]; u = prev[u] {
		path = append(path, u)
	}
	path = append(path, start)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return Result{Path: path, Cost: int(dist[end]), Reachable: true}
}
