package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/yugisim/duel-server-go/internal/config"
	"github.com/yugisim/duel-server-go/internal/game"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SessionAdminServiceName is the fully qualified name of the admin service.
const SessionAdminServiceName = "duel.v1.SessionAdmin"

// SessionAdminServer is the operator-facing view of the session registry.
// Messages are protobuf well-known types so no generated code is needed.
type SessionAdminServer interface {
	CreateSession(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	ListSessions(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetSnapshot(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	CloseSession(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

func unaryHandler[Req any, Resp any](name string, newReq func() *Req, call func(SessionAdminServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SessionAdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + SessionAdminServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(SessionAdminServer), ctx, req.(*Req))
			})
		},
	}
}

var sessionAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionAdminServiceName,
	HandlerType: (*SessionAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateSession", func() *emptypb.Empty { return new(emptypb.Empty) },
			func(s SessionAdminServer, ctx context.Context, in *emptypb.Empty) (*wrapperspb.StringValue, error) {
				return s.CreateSession(ctx, in)
			}),
		unaryHandler("ListSessions", func() *emptypb.Empty { return new(emptypb.Empty) },
			func(s SessionAdminServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
				return s.ListSessions(ctx, in)
			}),
		unaryHandler("GetSnapshot", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
			func(s SessionAdminServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
				return s.GetSnapshot(ctx, in)
			}),
		unaryHandler("CloseSession", func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
			func(s SessionAdminServer, ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
				return s.CloseSession(ctx, in)
			}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "duel/v1/session_admin.proto",
}

// RegisterSessionAdminServer registers srv on s.
func RegisterSessionAdminServer(s grpc.ServiceRegistrar, srv SessionAdminServer) {
	s.RegisterService(&sessionAdminServiceDesc, srv)
}

// SessionAdminClient calls the admin service over conn.
type SessionAdminClient struct {
	conn grpc.ClientConnInterface
}

func NewSessionAdminClient(conn grpc.ClientConnInterface) *SessionAdminClient {
	return &SessionAdminClient{conn: conn}
}

func (c *SessionAdminClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, "/"+SessionAdminServiceName+"/"+method, in, out)
}

func (c *SessionAdminClient) CreateSession(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, "CreateSession", &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *SessionAdminClient) ListSessions(ctx context.Context) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "ListSessions", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionAdminClient) GetSnapshot(ctx context.Context, sessionID string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetSnapshot", wrapperspb.String(sessionID), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SessionAdminClient) CloseSession(ctx context.Context, sessionID string) error {
	return c.invoke(ctx, "CloseSession", wrapperspb.String(sessionID), new(emptypb.Empty))
}

// CloseHook is told about a session an operator closed, with its final state.
type CloseHook func(sessionID string, final game.SessionView)

// sessionAdmin implements SessionAdminServer over a dispatcher.
type sessionAdmin struct {
	dispatcher *game.Dispatcher
	onClose    CloseHook
	logger     *zap.Logger
}

// NewSessionAdmin builds the admin service. onClose may be nil.
func NewSessionAdmin(dispatcher *game.Dispatcher, onClose CloseHook, logger *zap.Logger) SessionAdminServer {
	return &sessionAdmin{dispatcher: dispatcher, onClose: onClose, logger: logger}
}

func (s *sessionAdmin) CreateSession(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.dispatcher.Create()), nil
}

func (s *sessionAdmin) ListSessions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ids := s.dispatcher.Registry().IDs()
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	out, err := structpb.NewStruct(map[string]any{
		"count":    len(ids),
		"sessions": list,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode sessions: %v", err)
	}
	return out, nil
}

func (s *sessionAdmin) GetSnapshot(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	res, err := s.dispatcher.Snapshot(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	raw, err := json.Marshal(map[string]any{"state": res.View, "checksum": res.Checksum})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode snapshot: %v", err)
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode snapshot: %v", err)
	}
	return out, nil
}

// CloseSession seats everyone out of a session and removes it.
func (s *sessionAdmin) CloseSession(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id := in.GetValue()
	res, err := s.dispatcher.Snapshot(id)
	if err != nil {
		return nil, toStatus(err)
	}
	final := res.View
	for _, actor := range res.View.PlayerOrder {
		dep, err := s.dispatcher.Registry().Leave(id, actor)
		if err != nil && !errors.Is(err, game.ErrSessionNotFound) {
			return nil, toStatus(err)
		}
		if err == nil {
			final = dep.View
		}
	}
	s.dispatcher.Registry().Remove(id)
	if s.onClose != nil {
		s.onClose(id, final)
	}
	s.logger.Info("session closed by operator", zap.String("session_id", id))
	return &emptypb.Empty{}, nil
}

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, game.ErrSessionFull):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, game.ErrNotAMember), errors.Is(err, game.ErrNotYourTurn):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, game.ErrCardNotInHand), errors.Is(err, game.ErrCardNotFound),
		errors.Is(err, game.ErrDeckEmpty):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, game.ErrInvalidZone), errors.Is(err, game.ErrInvalidAttack),
		errors.Is(err, game.ErrInvalidActor), errors.Is(err, game.ErrUnknownAction),
		errors.Is(err, game.ErrIllegalDeck):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// NewGRPCServer builds the admin server with health checking and reflection.
func NewGRPCServer(cfg config.GRPCConfig, dispatcher *game.Dispatcher, onClose CloseHook, logger *zap.Logger) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	}
	if cfg.MaxConcurrentStreams > 0 {
		opts = append(opts, grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)))
	}

	srv := grpc.NewServer(opts...)
	RegisterSessionAdminServer(srv, NewSessionAdmin(dispatcher, onClose, logger))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus(SessionAdminServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(srv)
	return srv, healthSrv
}

// ServeGRPC listens on cfg.Address until ctx is done, then stops gracefully.
func ServeGRPC(ctx context.Context, cfg config.GRPCConfig, srv *grpc.Server, healthSrv *health.Server, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		healthSrv.Shutdown()
		srv.GracefulStop()
	}()

	logger.Info("starting gRPC server", zap.String("address", cfg.Address))
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
