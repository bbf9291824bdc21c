package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/cadenza-hq/music-crm-api/api/swagger"
	"github.com/cadenza-hq/music-crm-api/internal/handler"
	"github.com/cadenza-hq/music-crm-api/internal/middleware"
	"github.com/cadenza-hq/music-crm-api/internal/models"
	"github.com/cadenza-hq/music-crm-api/internal/repository"
	"github.com/cadenza-hq/music-crm-api/internal/service"
	"github.com/cadenza-hq/music-crm-api/pkg/cache"
	"github.com/cadenza-hq/music-crm-api/pkg/config"
	"github.com/cadenza-hq/music-crm-api/pkg/database"
	"github.com/cadenza-hq/music-crm-api/pkg/logger"
	corsmiddleware "github.com/cadenza-hq/music-crm-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cadenza-hq/music-crm-api/pkg/middleware/requestid"
)

// @title Music CRM API
// @version 0.1.0
// @description Admission scheduling and capacity allocation for a music school back office
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, plan cache disabled", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	planRepo := repository.NewCoursePlanRepository(db)
	timeSlotRepo := repository.NewTimeSlotRepository(db)
	classroomRepo := repository.NewClassroomSlotRepository(db)
	admissionRepo := repository.NewAdmissionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, validate, logr)
	userSvc := service.NewUserService(userRepo, logr)
	planSvc := service.NewCoursePlanService(planRepo, redisClient, cfg.Catalog.PlanCacheTTL, metricsSvc, validate, logr)
	timeSlotSvc := service.NewTimeSlotService(timeSlotRepo, logr)
	resolver := service.NewSlotResolver(timeSlotRepo, logr)
	capacity := service.NewCapacityValidator(classroomRepo, logr)
	admissionSvc := service.NewAdmissionService(
		admissionRepo, leadRepo, planSvc, courseRepo, userSvc,
		resolver, capacity, attendanceRepo, metricsSvc,
		validate, logr,
		service.AdmissionConfig{OnboardedStageName: cfg.Admissions.OnboardedStageName},
	)

	authHandler := handler.NewAuthHandler(authSvc)
	admissionHandler := handler.NewAdmissionHandler(admissionSvc, cfg.Admissions.ScheduleExport)
	planHandler := handler.NewCoursePlanHandler(planSvc)
	timeSlotHandler := handler.NewTimeSlotHandler(timeSlotSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	authed.GET("/time-slots", timeSlotHandler.List)

	authed.GET("/course-plans", planHandler.List)
	authed.GET("/course-plans/:id", planHandler.Get)
	authed.POST("/course-plans", middleware.RequireRoles(models.RoleAdmin), planHandler.Create)
	authed.PUT("/course-plans/:id", middleware.RequireRoles(models.RoleAdmin), planHandler.Update)
	authed.DELETE("/course-plans/:id", middleware.RequireRoles(models.RoleAdmin), planHandler.Delete)

	staffOrAdmin := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	authed.POST("/admissions", staffOrAdmin, admissionHandler.Create)
	authed.GET("/admissions", staffOrAdmin, admissionHandler.List)
	authed.GET("/admissions/:id", staffOrAdmin, admissionHandler.Get)
	authed.PATCH("/admissions/:id", staffOrAdmin, admissionHandler.Update)
	authed.DELETE("/admissions/:id", staffOrAdmin, admissionHandler.Delete)
	authed.GET("/admissions/:id/schedule/export", staffOrAdmin, admissionHandler.ExportSchedule)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
