package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/arquivoshare/portal-api/api/swagger"
	"github.com/arquivoshare/portal-api/internal/access"
	"github.com/arquivoshare/portal-api/internal/handler"
	"github.com/arquivoshare/portal-api/internal/middleware"
	"github.com/arquivoshare/portal-api/internal/models"
	"github.com/arquivoshare/portal-api/internal/repository"
	"github.com/arquivoshare/portal-api/internal/service"
	"github.com/arquivoshare/portal-api/pkg/cache"
	"github.com/arquivoshare/portal-api/pkg/config"
	"github.com/arquivoshare/portal-api/pkg/database"
	"github.com/arquivoshare/portal-api/pkg/logger"
	corsmiddleware "github.com/arquivoshare/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/arquivoshare/portal-api/pkg/middleware/requestid"
	"github.com/arquivoshare/portal-api/pkg/storage"
)

// @title Arquivo Share Portal API
// @version 1.0.0
// @description Administration portal for shared file distribution
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	loc, err := time.LoadLocation(cfg.Visibility.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid visibility timezone", "timezone", cfg.Visibility.Timezone, "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, analytics cache disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	fileRepo := repository.NewFileRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	downloadRepo := repository.NewDownloadRepository(db)

	// Instrumentation and cache.
	metricsService := service.NewMetricsService()
	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Analytics.CacheTTL, logr, cfg.Analytics.Enabled)
	}

	// Blob storage driver.
	var blobURLs service.BlobURLProvider
	var localBlobs *service.LocalBlobURLs
	switch cfg.Storage.Driver {
	case "s3":
		s3Store, err := storage.NewS3Storage(context.Background(), cfg.Storage.S3)
		if err != nil {
			logr.Sugar().Fatalw("failed to init s3 storage", "error", err)
		}
		blobURLs = service.NewS3BlobURLs(s3Store, cfg.Storage.SignedURLTTL)
	default:
		localStore, err := storage.NewLocalStorage(cfg.Storage.LocalDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init local storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
		localBlobs = service.NewLocalBlobURLs(signer, localStore, cfg.APIPrefix)
		blobURLs = localBlobs
	}

	// Services.
	planner := access.NewPlanner(access.NewEvaluator(loc))
	authService := service.NewAuthService(userRepo, logr, service.AuthConfig{
		TokenSecret: cfg.Auth.TokenSecret,
		Issuer:      cfg.Auth.Issuer,
	})
	fileService := service.NewFileService(fileRepo, permissionRepo, groupRepo, categoryRepo, downloadRepo, userRepo, blobURLs, planner, nil, metricsService, logr)
	permissionService := service.NewPermissionService(permissionRepo, fileRepo, userRepo, nil, logr)
	groupService := service.NewGroupService(groupRepo, userRepo, nil, logr)
	categoryService := service.NewCategoryService(categoryRepo, userRepo, nil, logr)
	userService := service.NewUserService(userRepo, nil, logr)
	analyticsService := service.NewAnalyticsService(downloadRepo, fileRepo, cacheService, metricsService, loc, logr)
	exportService := service.NewExportService(downloadRepo, nil, nil, logr)

	// Handlers.
	fileHandler := handler.NewFileHandler(fileService, permissionService, analyticsService, localBlobs)
	groupHandler := handler.NewGroupHandler(groupService)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	userHandler := handler.NewUserHandler(userService, authService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Local blob delivery carries its own signed token; a JWT is accepted
	// but not required so request logs keep the identity when present.
	api.GET("/files/blob/:token", middleware.OptionalJWT(authService), fileHandler.Blob)

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	authed.GET("/me", userHandler.Me)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleOperator)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	files := authed.Group("/files")
	{
		files.GET("", fileHandler.List)
		files.GET("/:id", fileHandler.Get)
		files.POST("/:id/download", fileHandler.Download)

		files.POST("", staff, fileHandler.Create)
		files.PUT("/:id", staff, fileHandler.Update)
		files.DELETE("/:id", staff, fileHandler.Delete)
		files.GET("/:id/downloads", staff, fileHandler.Downloads)
		files.GET("/:id/permissions", staff, fileHandler.ListPermissions)
		files.POST("/:id/permissions", staff, fileHandler.Grant)
		files.DELETE("/:id/permissions/:grantId", staff, fileHandler.Revoke)
	}

	groups := authed.Group("/groups", staff)
	{
		groups.GET("", groupHandler.List)
		groups.GET("/:id", groupHandler.Get)
		groups.POST("", groupHandler.Create)
		groups.PUT("/:id", groupHandler.Update)
		groups.DELETE("/:id", groupHandler.Delete)
		groups.GET("/:id/members", groupHandler.Members)
		groups.POST("/:id/members", groupHandler.AddMember)
		groups.DELETE("/:id/members/:userId", groupHandler.RemoveMember)
	}

	categories := authed.Group("/categories", staff)
	{
		categories.GET("", categoryHandler.List)
		categories.GET("/:id", categoryHandler.Get)
		categories.POST("", categoryHandler.Create)
		categories.PUT("/:id", categoryHandler.Update)
		categories.DELETE("/:id", categoryHandler.Delete)
		categories.GET("/:id/members", categoryHandler.Members)
		categories.POST("/:id/members", categoryHandler.AddMember)
		categories.DELETE("/:id/members/:userId", categoryHandler.RemoveMember)
	}

	users := authed.Group("/users")
	{
		users.GET("", staff, userHandler.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleOperator), "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Update)
		users.PUT("/:id/role", adminOnly, userHandler.UpdateRole)
	}

	analytics := authed.Group("/analytics", staff)
	{
		analytics.GET("/downloads", analyticsHandler.Stats)
		analytics.GET("/downloads/recent", analyticsHandler.Recent)
		analytics.GET("/downloads/export", middleware.Audit(userRepo, "ANALYTICS_EXPORT", "downloads"), analyticsHandler.Export)
		analytics.GET("/overview", analyticsHandler.Overview)
		analytics.GET("/system", adminOnly, analyticsHandler.System)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "storage", cfg.Storage.Driver, "timezone", cfg.Visibility.Timezone)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
