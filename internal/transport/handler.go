package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-crop-extractor/internal/config"
	apperrors "go-crop-extractor/internal/errors"
	"go-crop-extractor/internal/logger"
	"go-crop-extractor/internal/service"
	"go-crop-extractor/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewHandler builds the router. The routes are served both at the root and
// under /api, where the functions host forwards them.
func NewHandler(svc service.CropExtractionService, metrics http.Handler, cfg *config.Config) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/process_file", processFile(svc, cfg))
	r.GET("/api/process_file", processFile(svc, cfg))
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	return r
}

func processFile(svc service.CropExtractionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()
		ctx = logger.ContextWithRequestID(ctx, c.GetString(requestIDKey))

		var req models.ProcessRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			respondError(c, http.StatusBadRequest, apperrors.NewValidationError("invalid query parameters", err))
			return
		}

		resp, err := svc.ProcessFile(ctx, req)
		if err != nil {
			respondError(c, determineStatusCode(err), err)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), err.Err)
		}
	}
}

// determineStatusCode maps validation errors to 400 and everything else to 500
func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, code int, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"request_id":  c.GetString(requestIDKey),
		"status_code": code,
		"error_type":  apperrors.GetType(err),
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{Error: err.Error()})
}
