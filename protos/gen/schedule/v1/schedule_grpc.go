package schedulev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ScheduleService_ServiceName                   = "agendafacil.schedule.v1.ScheduleService"
	ScheduleService_GetDaySchedule_FullMethodName = "/agendafacil.schedule.v1.ScheduleService/GetDaySchedule"
)

type ScheduleServiceClient interface {
	GetDaySchedule(ctx context.Context, in *DayScheduleRequest, opts ...grpc.CallOption) (*DayScheduleResponse, error)
}

type scheduleServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewScheduleServiceClient(cc grpc.ClientConnInterface) ScheduleServiceClient {
	return &scheduleServiceClient{cc: cc}
}

func (c *scheduleServiceClient) GetDaySchedule(ctx context.Context, in *DayScheduleRequest, opts ...grpc.CallOption) (*DayScheduleResponse, error) {
	out := new(DayScheduleResponse)
	if err := c.cc.Invoke(ctx, ScheduleService_GetDaySchedule_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type ScheduleServiceServer interface {
	GetDaySchedule(context.Context, *DayScheduleRequest) (*DayScheduleResponse, error)
}

// UnimplementedScheduleServiceServer can be embedded to have forward compatible implementations.
type UnimplementedScheduleServiceServer struct{}

func (UnimplementedScheduleServiceServer) GetDaySchedule(context.Context, *DayScheduleRequest) (*DayScheduleResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetDaySchedule not implemented")
}

func RegisterScheduleServiceServer(s grpc.ServiceRegistrar, srv ScheduleServiceServer) {
	s.RegisterService(&ScheduleService_ServiceDesc, srv)
}

func _ScheduleService_GetDaySchedule_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DayScheduleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScheduleServiceServer).GetDaySchedule(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ScheduleService_GetDaySchedule_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScheduleServiceServer).GetDaySchedule(ctx, req.(*DayScheduleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var ScheduleService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ScheduleService_ServiceName,
	HandlerType: (*ScheduleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetDaySchedule",
			Handler:    _ScheduleService_GetDaySchedule_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "schedule/v1/schedule.proto",
}
