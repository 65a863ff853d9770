package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/YKarmar/RoleMatch/internal/scan"
	"github.com/YKarmar/RoleMatch/internal/session"
	"github.com/YKarmar/RoleMatch/internal/types"
)

// LogReader 读取投递日志
type LogReader interface {
	Load() ([]types.LogEntry, error)
}

// ScanSource 列出并读取扫描文件
type ScanSource interface {
	scan.Source
	List() []scan.Blob
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	StagingDir     string
}

// 本地 HTTP 服务：给浏览器扩展和审阅页面使用
type Server struct {
	sess    *session.Session
	log     LogReader
	scans   ScanSource
	opts    Options
	router  *gin.Engine
	timeNow func() time.Time
}

func NewServer(sess *session.Session, log LogReader, scans ScanSource, opts Options) *Server {
	if opts.StagingDir == "" {
		opts.StagingDir = "scanned_jobs"
	}
	s := &Server{sess: sess, log: log, scans: scans, opts: opts, timeNow: time.Now}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(corsConfig(s.opts.AllowedOrigins)))

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.POST("/scans", s.pushScan)
		api.GET("/scans", s.listScans)
		api.POST("/scans/latest", s.loadLatestScan)

		api.GET("/session", s.getSession)
		api.PUT("/session", s.putSession)
		api.PUT("/session/resume", s.putResume)

		api.POST("/analyze", s.analyze)

		api.GET("/jobs", s.listJobs)
		api.GET("/jobs/:id", s.getJob)
		api.POST("/jobs/:id/send", s.sendJob)

		api.GET("/log", s.getLog)
	}
	return r
}

// 浏览器扩展的 Origin 带随机 ID，按 scheme 放行
var extensionSchemes = []string{"chrome-extension://", "moz-extension://", "safari-web-extension://"}

func isExtensionOrigin(origin string) bool {
	for _, scheme := range extensionSchemes {
		if strings.HasPrefix(origin, scheme) {
			return true
		}
	}
	return false
}

func corsConfig(origins []string) cors.Config {
	if len(origins) == 0 {
		origins = []string{"http://localhost:8501", "http://127.0.0.1:8501"}
	}
	return cors.Config{
		AllowOrigins:           origins,
		AllowOriginFunc:        isExtensionOrigin,
		AllowMethods:           []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:           []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:          []string{"Content-Length"},
		AllowBrowserExtensions: true,
		MaxAge:                 12 * time.Hour,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
}

// Run 启动服务，ctx 取消时优雅退出
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
