package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"snapsort/internal/category"
	apperrors "snapsort/internal/errors"
	"snapsort/internal/logger"
	"snapsort/internal/observer"
	"snapsort/internal/store"
	"snapsort/pkg/models"
	"snapsort/pkg/validation"
)

// NewHandler builds the read-side HTTP API over the gallery store. Writes
// never happen here; photos only enter through the ingest listener.
func NewHandler(st *store.Store, metrics *observer.MetricsObserver) http.Handler {
	r := gin.Default()
	r.Use(requestLogger(), errorHandler())

	r.GET("/health", healthCheck)

	api := r.Group("/api")
	{
		api.GET("/gallery", listGallery(st))
		api.GET("/categories/:category", listCategory(st))
		api.GET("/stats", galleryStats(st))
		api.GET("/latest", latestChange(st))
		api.GET("/metrics", pipelineMetrics(metrics))
	}

	r.GET("/gallery/:category/:filename", serveImage(st, false))
	r.GET("/download/:category/:filename", serveImage(st, true))

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func listGallery(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := st.ListAll()
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to list gallery", err)
			return
		}
		total := 0
		for _, items := range categories {
			total += len(items)
		}
		c.JSON(http.StatusOK, gin.H{
			"categories": categories,
			"total":      total,
		})
	}
}

func listCategory(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("category")
		if !category.Valid(name) {
			respondError(c, http.StatusNotFound, "unknown category",
				apperrors.NewNotFoundError(fmt.Sprintf("no category named %q", name), nil))
			return
		}

		items, err := st.List(category.Category(name))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to list category", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"category": name,
			"count":    len(items),
			"photos":   items,
		})
	}
}

func galleryStats(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := st.Stats()
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to compute stats", err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// latestChange lets clients poll for gallery changes cheaply: the value
// only moves when a photo or sidecar lands.
func latestChange(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := st.LastModified()
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to read gallery state", err)
			return
		}
		var ts int64
		lastModified := ""
		if !t.IsZero() {
			ts = t.Unix()
			lastModified = t.UTC().Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, gin.H{
			"last_modified":      lastModified,
			"last_modified_unix": ts,
		})
	}
}

func pipelineMetrics(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Metrics())
	}
}

func serveImage(st *store.Store, download bool) gin.HandlerFunc {
	validator := validation.NewFilenameValidator()
	return func(c *gin.Context) {
		name := c.Param("category")
		if !category.Valid(name) {
			respondError(c, http.StatusNotFound, "unknown category",
				apperrors.NewNotFoundError(fmt.Sprintf("no category named %q", name), nil))
			return
		}

		filename, err := validator.Sanitize(c.Param("filename"))
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid filename", err)
			return
		}

		path, err := st.ImagePath(category.Category(name), filename)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "photo not found", err)
			return
		}

		if download {
			c.FileAttachment(path, filename)
			return
		}
		c.File(path)
	}
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Debug("Request completed")
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
