package road

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
)

var (
	ErrNonPositiveWeight = errors.New("road graph: edge weight must be positive")
)

// Edge 有向边
type Edge struct {
	To     entity.Direction `json:"to"`
	Weight int              `json:"weight"`
}

// Graph 四个方向之间的静态带权有向图
// 功能：构造后不可变，可被多个读者共享
// 说明：允许不对称（South->East存在而East->South不存在），允许部分节点不可达
type Graph struct {
	adj [entity.NumDirections][]Edge
}

// NewGraph 根据邻接表创建路网图
// 参数：adj-方向到出边列表的映射，出边顺序即松弛顺序
// 返回：路网图，出现非正权重或非法方向时返回错误
func NewGraph(adj map[entity.Direction][]Edge) (*Graph, error) {
	g := &Graph{}
	for from, edges := range adj {
		if !from.Valid() {
			return nil, fmt.Errorf("%w: %d", entity.ErrInvalidDirection, from)
		}
		out := make([]Edge, 0, len(edges))
		for _, e := range edges {
			if !e.To.Valid() {
				return nil, fmt.Errorf("%w: %d", entity.ErrInvalidDirection, e.To)
			}
			if e.Weight <= 0 {
				return nil, fmt.Errorf("%w: %v->%v weight %d", ErrNonPositiveWeight, from, e.To, e.Weight)
			}
			out = append(out, e)
		}
		g.adj[from] = out
	}
	return g, nil
}

// Default 参考路网
// north:[(east,2),(west,3)], south:[(west,1),(east,4)], east:[(north,2)], west:[(south,3)]
func Default() *Graph {
	g, err := NewGraph(map[entity.Direction][]Edge{
		entity.North: {{To: entity.East, Weight: 2}, {To: entity.West, Weight: 3}},
		entity.South: {{To: entity.West, Weight: 1}, {To: entity.East, Weight: 4}},
		entity.East:  {{To: entity.North, Weight: 2}},
		entity.West:  {{To: entity.South, Weight: 3}},
	})
	if err != nil {
		log.Panicf("default road graph: %v", err)
	}
	return g
}

// Edges 指定方向的出边（只读，调用者不得修改）
func (g *Graph) Edges(from entity.Direction) []Edge {
	return g.adj[from]
}

// Adjacency 以映射形式导出邻接表副本，用于展示
func (g *Graph) Adjacency() map[entity.Direction][]Edge {
	out := make(map[entity.Direction][]Edge, entity.NumDirections)
	for _, d := range entity.Directions {
		out[d] = append([]Edge(nil), g.adj[d]...)
	}
	return out
}
