package server

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yugisim/duel-server-go/internal/config"
	"github.com/yugisim/duel-server-go/internal/game"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newAdminClient(t *testing.T, dispatcher *game.Dispatcher) (*SessionAdminClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(config.GRPCConfig{MaxConcurrentStreams: 10}, dispatcher, nil, zaptest.NewLogger(t))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSessionAdminClient(conn), conn
}

func TestSessionAdminLifecycle(t *testing.T) {
	dispatcher := newTestDispatcher(t)
	client, _ := newAdminClient(t, dispatcher)
	ctx := context.Background()

	id, err := client.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = dispatcher.Dispatch(id, game.Action{Type: game.ActionJoin, ActorID: "p1", DisplayName: "Alice", Deck: testDeck()})
	require.NoError(t, err)

	list, err := client.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), list.Fields["count"].GetNumberValue())
	assert.Equal(t, id, list.Fields["sessions"].GetListValue().Values[0].GetStringValue())

	snap, err := client.GetSnapshot(ctx, id)
	require.NoError(t, err)
	state := snap.Fields["state"].GetStructValue()
	require.NotNil(t, state)
	assert.Equal(t, id, state.Fields["session_id"].GetStringValue())
	assert.False(t, state.Fields["started"].GetBoolValue())
	p1 := state.Fields["players"].GetStructValue().Fields["p1"].GetStructValue()
	assert.Equal(t, float64(8000), p1.Fields["lp"].GetNumberValue())
	assert.Len(t, snap.Fields["checksum"].GetStringValue(), 64)

	require.NoError(t, client.CloseSession(ctx, id))
	assert.Equal(t, 0, dispatcher.Registry().Len())

	_, err = client.GetSnapshot(ctx, id)
	assert.Equal(t, codes.NotFound, status.Code(err))
	err = client.CloseSession(ctx, id)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthService(t *testing.T) {
	_, conn := newAdminClient(t, newTestDispatcher(t))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: SessionAdminServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestToStatus(t *testing.T) {
	cases := map[error]codes.Code{
		game.ErrSessionNotFound: codes.NotFound,
		game.ErrSessionFull:     codes.ResourceExhausted,
		game.ErrNotYourTurn:     codes.PermissionDenied,
		game.ErrDeckEmpty:       codes.FailedPrecondition,
		game.ErrIllegalDeck:     codes.InvalidArgument,
		assert.AnError:          codes.Internal,
	}
	for err, want := range cases {
		assert.Equal(t, want, status.Code(toStatus(err)), err.Error())
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := ChainUnaryInterceptors(
		RecoveryInterceptor(zaptest.NewLogger(t)),
		LoggingInterceptor(zaptest.NewLogger(t)),
	)
	info := &grpc.UnaryServerInfo{FullMethod: "/duel.v1.SessionAdmin/Boom"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "req", resp)
}
