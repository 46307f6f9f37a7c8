package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/reseller/internal/adapter/handler/rpc"
	"github.com/rl1809/reseller/internal/core/domain"
	"github.com/rl1809/reseller/internal/core/service"
)

type GRPCHandler struct {
	rpc.UnimplementedSellerRegistryServer
	registryService *service.RegistryService
	logger          *zap.SugaredLogger
}

func NewGRPCHandler(registryService *service.RegistryService, logger *zap.SugaredLogger) *GRPCHandler {
	return &GRPCHandler{registryService: registryService, logger: logger}
}

// callerFromMetadata returns the zero address when no caller is attached;
// the service rejects that on writes.
func callerFromMetadata(ctx context.Context) (domain.Address, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.ZeroAddress, nil
	}
	values := md.Get(rpc.CallerMetadataKey)
	if len(values) == 0 || values[0] == "" {
		return domain.ZeroAddress, nil
	}
	return domain.ParseAddress(values[0])
}

func (h *GRPCHandler) toStatus(method string, err error) error {
	_, code, message := classify(err)
	if code == codes.Internal {
		h.logger.Errorw("grpc call failed", "method", method, "error", err)
	}
	return status.Error(code, message)
}

func registryResponse(reg *domain.Registry) *rpc.RegistryResponse {
	return &rpc.RegistryResponse{
		RegistryId:  reg.ID,
		Owner:       reg.Owner.String(),
		SellerCount: reg.SellerCount,
		CreatedAt:   reg.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (h *GRPCHandler) Deploy(ctx context.Context, req *rpc.DeployRequest) (*rpc.RegistryResponse, error) {
	caller, err := callerFromMetadata(ctx)
	if err != nil {
		return nil, h.toStatus("Deploy", err)
	}

	reg, err := h.registryService.Deploy(ctx, caller)
	if err != nil {
		return nil, h.toStatus("Deploy", err)
	}
	return registryResponse(reg), nil
}

func (h *GRPCHandler) GetRegistry(ctx context.Context, req *rpc.RegistryRequest) (*rpc.RegistryResponse, error) {
	reg, err := h.registryService.Registry(ctx, req.RegistryId)
	if err != nil {
		return nil, h.toStatus("GetRegistry", err)
	}
	return registryResponse(reg), nil
}

func (h *GRPCHandler) Owner(ctx context.Context, req *rpc.RegistryRequest) (*rpc.OwnerResponse, error) {
	owner, err := h.registryService.Owner(ctx, req.RegistryId)
	if err != nil {
		return nil, h.toStatus("Owner", err)
	}
	return &rpc.OwnerResponse{Owner: owner.String()}, nil
}

func (h *GRPCHandler) RegisterSeller(ctx context.Context, req *rpc.RegisterSellerRequest) (*rpc.SellerResponse, error) {
	caller, err := callerFromMetadata(ctx)
	if err != nil {
		return nil, h.toStatus("RegisterSeller", err)
	}
	seller, err := domain.ParseAddress(req.Seller)
	if err != nil {
		return nil, h.toStatus("RegisterSeller", err)
	}

	index, err := h.registryService.RegisterSeller(ctx, req.RequestId, req.RegistryId, caller, seller)
	if err != nil {
		return nil, h.toStatus("RegisterSeller", err)
	}
	return &rpc.SellerResponse{Index: index, Seller: seller.String()}, nil
}

func (h *GRPCHandler) Sellers(ctx context.Context, req *rpc.SellersRequest) (*rpc.SellerResponse, error) {
	seller, err := h.registryService.Sellers(ctx, req.RegistryId, req.Index)
	if err != nil {
		return nil, h.toStatus("Sellers", err)
	}
	return &rpc.SellerResponse{Index: req.Index, Seller: seller.String()}, nil
}
