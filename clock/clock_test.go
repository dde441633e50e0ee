package clock_test

import (
	"context"
	"math"
	"testing"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/clock"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
)

func TestScheduleCadence(t *testing.T) {
	c := clock.New(config.ControlStep{Interval: 1}, 3)
	assert.Equal(t, int32(3), c.SCHEDULE_EVERY)
	assert.Equal(t, int32(math.MaxInt32), c.END_STEP)

	scheduled := []int32{}
	for range 9 {
		step := c.Advance()
		if c.IsScheduleStep() {
			scheduled = append(scheduled, step)
		}
	}
	assert.Equal(t, []int32{3, 6, 9}, scheduled)
	assert.Equal(t, 9., c.Time())
}

func TestSecondTicks(t *testing.T) {
	cases := []struct {
		interval float64
		want     []int
	}{
		{1, []int{1, 1, 1, 1}},
		{0.5, []int{0, 1, 0, 1}},
		{2, []int{2, 2, 2, 2}},
		{0.1, []int{0, 0, 0, 0}},
	}
	for _, tc := range cases {
		c := clock.New(config.ControlStep{Interval: tc.interval}, 3)
		got := make([]int, 0, len(tc.want))
		for range tc.want {
			c.Advance()
			got = append(got, c.SecondTicks())
		}
		assert.Equal(t, tc.want, got, "interval %v", tc.interval)
	}

	// 0.1秒步长累积误差下每10步恰好一个整秒
	c := clock.New(config.ControlStep{Interval: 0.1}, 3)
	total := 0
	for range 1000 {
		c.Advance()
		total += c.SecondTicks()
	}
	assert.Equal(t, 100, total)
}

func TestClockBounds(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 3600, Total: 2, Interval: 1}, 0.2)
	assert.Equal(t, int32(1), c.SCHEDULE_EVERY)
	assert.Equal(t, "01:00:00", c.String())
	assert.False(t, c.Finished())
	c.Advance()
	assert.True(t, c.Finished())
	h, m, s := c.GetHourMinuteSecond()
	assert.Equal(t, 1, h)
	assert.Equal(t, 0, m)
	assert.Equal(t, 1., s)
}

func TestNowRPC(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 10, Interval: 1}, 3)
	res, err := c.Now(context.Background(), connect.NewRequest(&clockv1.NowRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 10., res.Msg.T)
}
