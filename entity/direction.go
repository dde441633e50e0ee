package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDirection = errors.New("invalid direction")
)

// Direction 路口进口方向
// 功能：路口四个进口方向之一，作为排队、信控、导航与预测的统一键
// 说明：取值为封闭集合，数值顺序即所有“按方向遍历”的固定顺序（北、南、东、西）
type Direction int32

const (
	North Direction = iota
	South
	East
	West
)

// NumDirections 方向数量
const NumDirections = 4

// Directions 固定遍历顺序，也是各处最大堆的插入顺序
var Directions = [NumDirections]Direction{North, South, East, West}

var directionNames = [NumDirections]string{"north", "south", "east", "west"}

// cycleNext 信号灯轮转顺序：北->东->南->西->北
var cycleNext = [NumDirections]Direction{
	North: East,
	East:  South,
	South: West,
	West:  North,
}

// Valid 判断方向是否在集合内
func (d Direction) Valid() bool {
	return d >= North && d <= West
}

// Index 方向在固定顺序中的下标
func (d Direction) Index() int {
	return int(d)
}

// Next 轮转顺序中的下一个方向
func (d Direction) Next() Direction {
	return cycleNext[d]
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int32(d))
	}
	return directionNames[d]
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, int32(d))
	}
	return []byte(directionNames[d]), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	v, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDirection 解析方向名称（大小写不敏感，忽略首尾空白）
// 返回：方向，名称不在集合内时返回ErrInvalidDirection
func ParseDirection(s string) (Direction, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range directionNames {
		if n == name {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// ParseCounts 将外部按名称给出的计数转换为按方向的计数
// 功能：边界校验，缺失方向视为0，未知名称整体拒绝
func ParseCounts(raw map[string]int) (map[Direction]int, error) {
	counts := make(map[Direction]int, NumDirections)
	for k, v := range raw {
		d, err := ParseDirection(k)
		if err != nil {
			return nil, err
		}
		counts[d] = v
	}
	return counts, nil
}

// CountsArray 按固定顺序展开计数，缺失方向为0
func CountsArray(counts map[Direction]int) [NumDirections]int {
	var out [NumDirections]int
	for _, d := range Directions {
		out[d] = counts[d]
	}
	return out
}
