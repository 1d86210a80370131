// Package http 提供只读的分析快照接口与选择切换入口。
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fxlens/internal/app"
	"fxlens/internal/logger"
	"fxlens/internal/market"
)

// Server 封装 Gin 路由与底层 http.Server。
type Server struct {
	addr   string
	engine *app.Engine
	router *gin.Engine
	srv    *http.Server
}

func NewServer(addr string, engine *app.Engine) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if addr == "" {
		addr = ":8085"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:   addr,
		engine: engine,
		router: router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/snapshot", s.handleSnapshot)
	api.GET("/status", s.handleStatus)
	api.GET("/assets", s.handleAssets)
	api.POST("/select", s.handleSelect)
}

// Run 阻塞运行直到 ctx 取消，然后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()
	logger.Infof("[http] listening on %s", s.addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"events":  s.engine.RecentStatus(),
		"sources": s.engine.SourceStats(),
	})
}

func (s *Server) handleAssets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assets": market.DefaultAssets})
}

func (s *Server) handleSelect(c *gin.Context) {
	var req struct {
		Symbol   string `json:"symbol" binding:"required"`
		Interval string `json:"interval" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.Select(req.Symbol, req.Interval); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"symbol":   req.Symbol,
		"interval": req.Interval,
	})
}
