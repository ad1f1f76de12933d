package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/spaceai-cmdgate/internal/console/api"
	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
	"github.com/xela07ax/spaceai-cmdgate/internal/infra/auth"
)

// GatewayServiceName — полное имя gRPC сервиса. Сообщения — google.protobuf.Struct
// с теми же JSON-полями, что и у HTTP API.
const GatewayServiceName = "cmdgate.v1.CommandGateway"

// Имена методов сервиса
const (
	MethodExecute             = "Execute"
	MethodGetWhitelist        = "GetWhitelist"
	MethodAddToWhitelist      = "AddToWhitelist"
	MethodUpdateSecurityLevel = "UpdateSecurityLevel"
	MethodRemoveFromWhitelist = "RemoveFromWhitelist"
	MethodGetPendingCommands  = "GetPendingCommands"
	MethodApproveCommand      = "ApproveCommand"
	MethodDenyCommand         = "DenyCommand"
)

func FullMethod(method string) string {
	return "/" + GatewayServiceName + "/" + method
}

type CommandGatewayServer interface {
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetWhitelist(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddToWhitelist(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateSecurityLevel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveFromWhitelist(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPendingCommands(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApproveCommand(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DenyCommand(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structCall func(CommandGatewayServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call structCall) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CommandGatewayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CommandGatewayServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var CommandGatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: GatewayServiceName,
	HandlerType: (*CommandGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodExecute, Handler: unaryHandler(MethodExecute, CommandGatewayServer.Execute)},
		{MethodName: MethodGetWhitelist, Handler: unaryHandler(MethodGetWhitelist, CommandGatewayServer.GetWhitelist)},
		{MethodName: MethodAddToWhitelist, Handler: unaryHandler(MethodAddToWhitelist, CommandGatewayServer.AddToWhitelist)},
		{MethodName: MethodUpdateSecurityLevel, Handler: unaryHandler(MethodUpdateSecurityLevel, CommandGatewayServer.UpdateSecurityLevel)},
		{MethodName: MethodRemoveFromWhitelist, Handler: unaryHandler(MethodRemoveFromWhitelist, CommandGatewayServer.RemoveFromWhitelist)},
		{MethodName: MethodGetPendingCommands, Handler: unaryHandler(MethodGetPendingCommands, CommandGatewayServer.GetPendingCommands)},
		{MethodName: MethodApproveCommand, Handler: unaryHandler(MethodApproveCommand, CommandGatewayServer.ApproveCommand)},
		{MethodName: MethodDenyCommand, Handler: unaryHandler(MethodDenyCommand, CommandGatewayServer.DenyCommand)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cmdgate/v1/gateway.proto",
}

func RegisterCommandGatewayServer(s grpc.ServiceRegistrar, srv CommandGatewayServer) {
	s.RegisterService(&CommandGatewayServiceDesc, srv)
}

// WhitelistEditor — правки реестра. Общая реализация для HTTP и gRPC
// рассылает изменения соседним инстансам.
type WhitelistEditor interface {
	Add(ctx context.Context, entry domain.WhitelistEntry)
	UpdateLevel(ctx context.Context, command string, level domain.SecurityLevel)
	Remove(ctx context.Context, command string)
}

// localEditor правит только реестр этого инстанса.
type localEditor struct{ gw *Gateway }

func (e localEditor) Add(_ context.Context, entry domain.WhitelistEntry) { e.gw.AddToWhitelist(entry) }

func (e localEditor) UpdateLevel(_ context.Context, command string, level domain.SecurityLevel) {
	e.gw.UpdateSecurityLevel(command, level)
}

func (e localEditor) Remove(_ context.Context, command string) { e.gw.RemoveFromWhitelist(command) }

// GRPCGatewayServer — тот же пайплайн, что и у HTTP, поверх gRPC.
type GRPCGatewayServer struct {
	gw     *Gateway
	editor WhitelistEditor
}

// NewGRPCGatewayServer: editor == nil — правки только локальные.
func NewGRPCGatewayServer(gw *Gateway, editor WhitelistEditor) *GRPCGatewayServer {
	if editor == nil {
		editor = localEditor{gw: gw}
	}
	return &GRPCGatewayServer{gw: gw, editor: editor}
}

func (s *GRPCGatewayServer) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req api.ExecuteRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	if err := req.Validate(); err != nil {
		return nil, grpcError(err)
	}
	if req.RequestedBy == "" {
		req.RequestedBy = auth.UserID(ctx)
	}

	ticket, err := s.gw.Submit(ctx, ExecuteRequest{
		Command:     req.Command,
		Args:        req.Args,
		Timeout:     req.Timeout(),
		RequestedBy: req.RequestedBy,
	})
	if err != nil {
		return nil, grpcError(err)
	}

	if ticket.AwaitingApproval() && !req.Wait {
		return toStruct(api.Pending(*ticket.Pending))
	}

	res, err := ticket.Wait(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(api.Executed(res))
}

func (s *GRPCGatewayServer) GetWhitelist(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]interface{}{"entries": s.gw.Whitelist()})
}

func (s *GRPCGatewayServer) AddToWhitelist(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var entry api.WhitelistEntry
	if err := fromStruct(in, &entry); err != nil {
		return nil, grpcError(err)
	}
	if err := api.ValidateEntry(entry); err != nil {
		return nil, grpcError(err)
	}
	s.editor.Add(ctx, entry)
	return toStruct(entry)
}

func (s *GRPCGatewayServer) UpdateSecurityLevel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req struct {
		Command string `json:"command"`
		api.LevelUpdate
	}
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	if req.Command == "" {
		return nil, grpcError(fmt.Errorf("%w: command is required", api.ErrInvalid))
	}
	if err := api.ValidateLevel(req.SecurityLevel); err != nil {
		return nil, grpcError(err)
	}
	s.editor.UpdateLevel(ctx, req.Command, req.SecurityLevel)
	return &structpb.Struct{}, nil
}

func (s *GRPCGatewayServer) RemoveFromWhitelist(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	command := in.GetFields()["command"].GetStringValue()
	if command == "" {
		return nil, grpcError(fmt.Errorf("%w: command is required", api.ErrInvalid))
	}
	s.editor.Remove(ctx, command)
	return &structpb.Struct{}, nil
}

func (s *GRPCGatewayServer) GetPendingCommands(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]interface{}{"pending": api.FromPendingList(s.gw.PendingCommands())})
}

func (s *GRPCGatewayServer) ApproveCommand(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["id"].GetStringValue()
	res, err := s.gw.ApproveCommand(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(api.Executed(res))
}

func (s *GRPCGatewayServer) DenyCommand(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := in.GetFields()["id"].GetStringValue()
	reason := in.GetFields()["reason"].GetStringValue()
	if err := s.gw.DenyCommand(ctx, id, reason); err != nil {
		return nil, grpcError(err)
	}
	return toStruct(api.DenyResponse{ID: id, Status: string(domain.EventDenied)})
}

// grpcError переводит доменную ошибку в gRPC статус.
func grpcError(err error) error {
	var code codes.Code
	switch api.ErrorKind(err) {
	case api.KindInvalid:
		code = codes.InvalidArgument
	case api.KindUnauthorized, api.KindForbidden:
		code = codes.PermissionDenied
	case api.KindNotFound:
		code = codes.NotFound
	case api.KindDenied:
		code = codes.Aborted
	case api.KindTimeout:
		code = codes.DeadlineExceeded
	case api.KindExecution:
		code = codes.Unavailable
	case api.KindCanceled:
		code = codes.Canceled
		if errors.Is(err, context.DeadlineExceeded) {
			code = codes.DeadlineExceeded
		}
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

func fromStruct(in *structpb.Struct, v interface{}) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalid, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", api.ErrInvalid, err)
	}
	return nil
}
