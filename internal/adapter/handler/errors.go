package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/reseller/internal/core/domain"
	"github.com/rl1809/reseller/internal/core/service"
)

// classify maps a service error onto the HTTP status, gRPC code and
// client-facing message shared by both transports.
func classify(err error) (int, codes.Code, string) {
	switch {
	case errors.Is(err, service.ErrMissingCaller):
		return http.StatusUnauthorized, codes.Unauthenticated, "missing caller address"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, codes.PermissionDenied, "caller is not the registry owner"
	case errors.Is(err, domain.ErrInvalidAddress):
		return http.StatusBadRequest, codes.InvalidArgument, "invalid address"
	case errors.Is(err, domain.ErrRegistryNotFound):
		return http.StatusNotFound, codes.NotFound, "registry not found"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, codes.AlreadyExists, "duplicate request"
	default:
		return http.StatusInternalServerError, codes.Internal, "internal error"
	}
}
