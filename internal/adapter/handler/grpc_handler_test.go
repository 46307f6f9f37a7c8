package handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/reseller/internal/adapter/handler/rpc"
	"github.com/rl1809/reseller/internal/adapter/storage"
	"github.com/rl1809/reseller/internal/core/domain"
	"github.com/rl1809/reseller/internal/core/service"
)

func newTestConn(t *testing.T) *grpc.ClientConn {
	t.Helper()

	svc := service.NewRegistryService(storage.NewMemoryAdapter(), storage.NewMemoryCache(time.Hour), 100)
	go func() {
		for range svc.Events() {
		}
	}()

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	rpc.RegisterSellerRegistryServer(server, NewGRPCHandler(svc, zap.NewNop().Sugar()))
	go server.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		server.Stop()
		svc.Close()
	})
	return conn
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, status.Code(err), err.Error())
}

func TestGRPC_OwnerIsDeployer(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()
	client := rpc.NewSellerRegistryClient(conn, ownerAddr.String())

	reg, err := client.Deploy(ctx, &rpc.DeployRequest{})
	require.NoError(t, err)
	require.Equal(t, ownerAddr.String(), reg.Owner)

	owner, err := client.Owner(ctx, &rpc.RegistryRequest{RegistryId: reg.RegistryId})
	require.NoError(t, err)
	require.Equal(t, ownerAddr.String(), owner.Owner)
}

func TestGRPC_RegisterSeller(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()
	client := rpc.NewSellerRegistryClient(conn, ownerAddr.String())

	reg, err := client.Deploy(ctx, &rpc.DeployRequest{})
	require.NoError(t, err)

	resp, err := client.RegisterSeller(ctx, &rpc.RegisterSellerRequest{
		RequestId:  "req-1",
		RegistryId: reg.RegistryId,
		Seller:     sellerAddr.Hex(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, resp.Index)

	got, err := client.Sellers(ctx, &rpc.SellersRequest{RegistryId: reg.RegistryId, Index: 1})
	require.NoError(t, err)
	require.Equal(t, sellerAddr.String(), got.Seller)

	got, err = client.Sellers(ctx, &rpc.SellersRequest{RegistryId: reg.RegistryId, Index: 2})
	require.NoError(t, err)
	require.Equal(t, domain.ZeroAddress.String(), got.Seller)

	meta, err := client.GetRegistry(ctx, &rpc.RegistryRequest{RegistryId: reg.RegistryId})
	require.NoError(t, err)
	require.EqualValues(t, 1, meta.SellerCount)

	_, err = client.RegisterSeller(ctx, &rpc.RegisterSellerRequest{
		RequestId:  "req-1",
		RegistryId: reg.RegistryId,
		Seller:     sellerAddr.Hex(),
	})
	requireCode(t, err, codes.AlreadyExists)
}

func TestGRPC_Errors(t *testing.T) {
	conn := newTestConn(t)
	ctx := context.Background()
	ownerClient := rpc.NewSellerRegistryClient(conn, ownerAddr.String())

	reg, err := ownerClient.Deploy(ctx, &rpc.DeployRequest{})
	require.NoError(t, err)

	outsider := rpc.NewSellerRegistryClient(conn, outsiderAddr.String())
	_, err = outsider.RegisterSeller(ctx, &rpc.RegisterSellerRequest{RegistryId: reg.RegistryId, Seller: sellerAddr.Hex()})
	requireCode(t, err, codes.PermissionDenied)

	anonymous := rpc.NewSellerRegistryClient(conn, "")
	_, err = anonymous.Deploy(ctx, &rpc.DeployRequest{})
	requireCode(t, err, codes.Unauthenticated)

	_, err = ownerClient.RegisterSeller(ctx, &rpc.RegisterSellerRequest{RegistryId: reg.RegistryId, Seller: "nope"})
	requireCode(t, err, codes.InvalidArgument)

	_, err = ownerClient.Owner(ctx, &rpc.RegistryRequest{RegistryId: "missing"})
	requireCode(t, err, codes.NotFound)

	got, err := ownerClient.Sellers(ctx, &rpc.SellersRequest{RegistryId: reg.RegistryId, Index: 1})
	require.NoError(t, err)
	require.Equal(t, domain.ZeroAddress.String(), got.Seller)
}
