package api

import (
	"net/http"

	"food-delivery/internal/apperr"
	"food-delivery/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.FailedPrecondition:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if apperr.IsStorage(err) {
		h.logger.Error("Storage failure",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	st, ok := status.FromError(err)
	if !ok {
		h.logger.Error("Handler error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	code := httpStatus(st.Code())
	message := apperr.Message(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("Handler error",
			zap.String("path", c.FullPath()),
			zap.String("code", st.Code().String()),
			zap.Error(err))
		message = "Internal server error"
	} else {
		h.logger.Debug("Request refused",
			zap.String("path", c.FullPath()),
			zap.String("code", st.Code().String()),
			zap.String("message", message))
	}

	c.JSON(code, ErrorResponse{Error: message})
}

func writeOutcome(c *gin.Context, out service.Outcome) {
	c.JSON(httpStatus(out.Code), out)
}
