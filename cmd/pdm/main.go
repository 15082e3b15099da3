package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-pdm/internal/config"
	"github.com/bitfantasy/nimo-pdm/internal/middleware"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/handler"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/repository"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/service"
	"github.com/bitfantasy/nimo-pdm/internal/pdm/store"
	"github.com/bitfantasy/nimo-pdm/internal/shared/gitrepo"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-pdm service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化元数据库
	db, err := store.OpenDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to open database", zap.Error(err))
	}
	if err := store.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 初始化设计库（本地git仓库，不存在时初始化）
	repo, err := gitrepo.Open(cfg.Vault.Path)
	if err != nil {
		zapLogger.Fatal("Failed to open design vault", zap.Error(err))
	}
	zapLogger.Info("Design vault ready", zap.String("path", repo.Path()))

	st := store.New(db, repo)
	defer st.Close()

	repos := repository.NewRepositories()
	services := service.NewServices(st, repos, zapLogger)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1，全部走JWT认证
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		v1.GET("/categories", h.Part.Categories)

		v1.POST("/parts", h.Part.Create)
		v1.GET("/parts", h.Part.List)
		v1.GET("/parts/:id", h.Part.Get)
		v1.PUT("/parts/:id", h.Part.Update)
		v1.POST("/parts/:id/status", h.Part.ChangeStatus)

		v1.GET("/parts/:id/properties", h.Part.Properties)
		v1.PUT("/parts/:id/properties", h.Part.SetProperties)

		v1.POST("/parts/:id/manufacturer-parts", h.Part.AddManufacturerPart)
		v1.GET("/parts/:id/manufacturer-parts", h.Part.ListManufacturerParts)
		v1.DELETE("/manufacturer-parts/:mpId", h.Part.DeleteManufacturerPart)

		v1.POST("/parts/:id/revisions", h.Revision.Create)
		v1.GET("/parts/:id/revisions", h.Revision.List)
		v1.GET("/parts/:id/revisions/latest", h.Revision.Latest)
		v1.GET("/parts/:id/revisions/latest-released", h.Revision.LatestReleased)
		v1.PUT("/revisions/:revId/status", h.Revision.UpdateStatus)
		v1.POST("/revisions/:revId/decisions", h.Revision.Decide)
		v1.GET("/revisions/:revId/decisions", h.Revision.Approvals)

		v1.POST("/relationships", h.Relationship.Add)
		v1.DELETE("/relationships/:relId", h.Relationship.Remove)
		v1.GET("/parts/:id/relationships/children", h.Relationship.Children)
		v1.GET("/parts/:id/relationships/parents", h.Relationship.Parents)

		v1.GET("/parts/:id/bom/export", h.Part.ExportBOM)

		v1.GET("/sse/events", h.SSE.Stream)
	}
}
