package input_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/forecast"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/input"
)

func TestInitDefaultHistorical(t *testing.T) {
	in := input.Init(config.Config{})
	assert.Equal(t, forecast.DefaultHistorical(), in.Historical)
}

func TestInitInlineSeries(t *testing.T) {
	var c config.Config
	c.Input.HistoricalSeries = map[string][]int{"west": {1, 2, 3, 4, 5, 6}}
	in := input.Init(c)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, in.Historical[entity.West])
	assert.Equal(t, forecast.DefaultHistorical()[entity.North], in.Historical[entity.North])
}

func TestInitInvalidSeriesPanics(t *testing.T) {
	var c config.Config
	c.Input.HistoricalSeries = map[string][]int{"up": {1}}
	assert.Panics(t, func() { input.Init(c) })
}

func TestSeries(t *testing.T) {
	s := input.Series([]input.HistoricalRecord{
		{Direction: "north", Values: []int{1}},
		{Direction: "south", Values: []int{2}},
		{Direction: "north", Values: []int{3}},
	})
	assert.Equal(t, map[string][]int{"north": {3}, "south": {2}}, s)
}
