package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db      *gorm.DB
	env     string
	started time.Time
	log     *zap.Logger
}

func NewHealthHandler(db *gorm.DB, env string, zl *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, env: env, started: time.Now(), log: zl}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"uptime":      time.Since(h.started).Seconds(),
		"environment": h.env,
	})
}

// Ready reports 503 until the database answers a ping.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.log.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not ready",
			"database": "disconnected",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Metrics(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	const mb = 1024 * 1024
	c.JSON(http.StatusOK, gin.H{
		"memory": gin.H{
			"heapAllocMB": m.HeapAlloc / mb,
			"heapSysMB":   m.HeapSys / mb,
			"sysMB":       m.Sys / mb,
			"numGC":       m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
		"uptime":     int64(time.Since(h.started).Seconds()),
		"goVersion":  runtime.Version(),
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
