package httpapi

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"landingbuilder.io/internal/auth"
	"landingbuilder.io/internal/obs"
)

const (
	serviceName       = "identity-api"
	sessionService    = "identity.v1.Session"
	whoAmIMethod      = "/identity.v1.Session/WhoAmI"
	healthMethodScope = "/grpc.health.v1.Health/"
)

// SessionServer is the identity.v1.Session service.
type SessionServer interface {
	WhoAmI(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionService,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "identity/v1/session.proto",
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: whoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer serves the health service and identity.v1.Session.
type GRPCServer struct {
	svc       *auth.Service
	health    *health.Server
	readiness ReadyProbe
	version   string
	timeout   time.Duration
}

// GRPCOption configures a GRPCServer.
type GRPCOption func(*GRPCServer)

// WithCallTimeout bounds the context of every authenticated call.
func WithCallTimeout(d time.Duration) GRPCOption {
	return func(s *GRPCServer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewGRPCServer creates the gRPC service wrapper.
func NewGRPCServer(svc *auth.Service, r ReadyProbe, version string, opts ...GRPCOption) *GRPCServer {
	s := &GRPCServer{
		svc:       svc,
		health:    health.NewServer(),
		readiness: r,
		version:   version,
		timeout:   defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServer builds a *grpc.Server with the auth interceptor and both services registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.authInterceptor))
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, s.health)
	srv.RegisterService(&sessionServiceDesc, s)
	return srv
}

// RefreshHealth pings the store and publishes the result to the health service.
func (s *GRPCServer) RefreshHealth(ctx context.Context) error {
	st := healthpb.HealthCheckResponse_SERVING
	err := s.readiness.Check(ctx)
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(sessionService, st)
	return err
}

// Shutdown flips every health status to NOT_SERVING.
func (s *GRPCServer) Shutdown() {
	s.health.Shutdown()
}

// WhoAmI returns the caller's AuthContext.
func (s *GRPCServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ac, ok := auth.AuthFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing authentication")
	}
	return structpb.NewStruct(map[string]any{
		"principal_id": ac.PrincipalID,
		"tenant_id":    ac.TenantID,
		"email":        ac.Email,
		"role":         string(ac.Role),
		"session_id":   ac.SessionID,
		"service":      serviceName,
		"version":      s.version,
	})
}

func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if strings.HasPrefix(info.FullMethod, healthMethodScope) {
		return handler(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var authorization string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 {
			authorization = values[0]
		}
	}
	ac, err := s.svc.Authenticate(ctx, authorization)
	if err != nil {
		return nil, grpcError(err)
	}
	return handler(auth.ContextWithAuth(ctx, ac), req)
}

// grpcError maps an engine error onto a status. Infrastructure details stay in the log.
func grpcError(err error) error {
	var code codes.Code
	switch auth.KindOf(err) {
	case auth.KindUnauthenticated:
		code = codes.Unauthenticated
	case auth.KindForbidden:
		code = codes.PermissionDenied
	case auth.KindInvalid:
		code = codes.InvalidArgument
	case auth.KindConflict:
		code = codes.AlreadyExists
	case auth.KindNotConfigured:
		code = codes.Unimplemented
	default:
		obs.Logger().Error("grpc request failed", "error", err.Error())
		return status.Error(codes.Unavailable, "temporarily unavailable")
	}
	return status.Error(code, strings.TrimPrefix(err.Error(), "auth: "))
}
