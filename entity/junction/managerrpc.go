package junction

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	mapv2connect "git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/junction/trafficlight"
	"google.golang.org/protobuf/proto"
)

// Register 将Junction管理器注册到sidecar
// 功能：注册信号灯服务处理器，支持gRPC-Connect协议
func (m *JunctionManager) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		mapv2connect.TrafficLightServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return mapv2connect.NewTrafficLightServiceHandler(m, opts...)
		},
	)
}

// GetTrafficLight RPC接口：获取指定Junction的信号灯状态
// 返回：信号方案（副本）、当前相位索引和剩余时间
func (m *JunctionManager) GetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.GetTrafficLightRequest],
) (*connect.Response[mapv2.GetTrafficLightResponse], error) {
	j, err := m.Get(in.Msg.JunctionId)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s := j.Status()
	return connect.NewResponse(&mapv2.GetTrafficLightResponse{
		TrafficLight:  proto.Clone(j.Program()).(*mapv2.TrafficLight),
		PhaseIndex:    s.PhaseIndex,
		TimeRemaining: float64(s.Countdown),
	}), nil
}

// SetTrafficLight RPC接口：信号方案固定，总是拒绝
func (m *JunctionManager) SetTrafficLight(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightRequest],
) (*connect.Response[mapv2.SetTrafficLightResponse], error) {
	if in.Msg.TrafficLight == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("empty traffic light"))
	}
	if _, err := m.Get(in.Msg.TrafficLight.JunctionId); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return nil, connect.NewError(connect.CodeInvalidArgument, trafficlight.ErrFixedProgram)
}

// SetTrafficLightPhase RPC接口：设置指定Junction的信号灯相位
// 说明：只修改相位与剩余时间，下一步生效
func (m *JunctionManager) SetTrafficLightPhase(
	ctx context.Context, in *connect.Request[mapv2.SetTrafficLightPhaseRequest],
) (*connect.Response[mapv2.SetTrafficLightPhaseResponse], error) {
	req := in.Msg
	j, err := m.Get(req.JunctionId)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := j.SetPhase(req.PhaseIndex, req.TimeRemaining); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(&mapv2.SetTrafficLightPhaseResponse{}), nil
}
