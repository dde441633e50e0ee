package entity

import (
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/clock"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
)

type ITaskContext interface {
	Clock() *clock.Clock
	RuntimeConfig() *config.RuntimeConfig
}
