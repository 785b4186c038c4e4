package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/exam-adp-api/api/swagger"
	"github.com/noah-isme/exam-adp-api/internal/handler"
	"github.com/noah-isme/exam-adp-api/internal/middleware"
	"github.com/noah-isme/exam-adp-api/internal/models"
	"github.com/noah-isme/exam-adp-api/internal/realtime"
	"github.com/noah-isme/exam-adp-api/internal/repository"
	"github.com/noah-isme/exam-adp-api/internal/service"
	rediscache "github.com/noah-isme/exam-adp-api/pkg/cache"
	"github.com/noah-isme/exam-adp-api/pkg/config"
	"github.com/noah-isme/exam-adp-api/pkg/database"
	"github.com/noah-isme/exam-adp-api/pkg/export"
	"github.com/noah-isme/exam-adp-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-adp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-adp-api/pkg/middleware/requestid"
)

// @title Exam ADP API
// @version 0.1.0
// @description Exam administration: scheduling, access control, live answer ingestion, scoring and results
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, metadata cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	resultRepo := repository.NewResultRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT.Secret)
	accessSvc := service.NewAccessService(examRepo, sessionRepo, cacheRepo, cfg.Exam.StartGrace, cfg.Exam.CacheTTL, logr)
	examSvc := service.NewExamService(examRepo, questionRepo, catalogRepo, validate, logr)
	resultSvc := service.NewResultService(resultRepo, questionRepo, catalogRepo, nil, logr)
	sessionSvc := service.NewSessionService(sessionRepo, examRepo, questionRepo, answerRepo, resultSvc, nil, metrics, validate, logr)
	scheduleSvc := service.NewScheduleService(scheduleRepo, catalogRepo, validate, logr)
	reportSvc := service.NewReportService(resultRepo, catalogRepo, export.NewCSVExporter(), export.NewPDFExporter(), cfg.Reports.ExportEnabled, logr)

	hub := realtime.NewHub(sessionSvc, metrics, cfg.Realtime, cfg.Exam.TimerTick, logr)
	sessionSvc.SetBarrier(hub)

	examHandler := handler.NewExamHandler(examSvc, accessSvc)
	sessionHandler := handler.NewSessionHandler(accessSvc, sessionSvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	resultHandler := handler.NewResultHandler(resultSvc, reportSvc)
	realtimeHandler := handler.NewRealtimeHandler(hub, accessSvc, originChecker(cfg.CORS.AllowedOrigins), logr)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	teacherOnly := middleware.RequireRoles(models.RoleTeacher)
	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	api.GET("/exams", examHandler.List)
	api.GET("/exams/:id", examHandler.Get)
	api.POST("/exams", teacherOnly, examHandler.Create)
	api.PUT("/exams/:id", teacherOnly, examHandler.Update)
	api.DELETE("/exams/:id", teacherOnly, examHandler.Delete)

	api.GET("/exams/:id/questions", teacherOnly, examHandler.ListQuestions)
	api.POST("/exams/:id/questions", teacherOnly, examHandler.AddQuestion)
	api.PUT("/questions/:id", teacherOnly, examHandler.UpdateQuestion)
	api.DELETE("/questions/:id", teacherOnly, examHandler.DeleteQuestion)
	api.GET("/exams/:id/paper", studentOnly, examHandler.StudentQuestions)

	api.GET("/exams/:id/access", sessionHandler.Access)
	api.GET("/exams/:id/live", realtimeHandler.Connect)
	api.PUT("/sessions/:id/answers/:questionId", studentOnly, sessionHandler.SubmitAnswer)
	api.POST("/sessions/:id/submit", sessionHandler.Finalize)

	api.GET("/schedules", scheduleHandler.List)
	api.POST("/schedules", staffOnly, scheduleHandler.Propose)
	api.PUT("/schedules/:id", staffOnly, scheduleHandler.Update)
	api.DELETE("/schedules/:id", staffOnly, scheduleHandler.Delete)

	api.GET("/courses/:id/results", teacherOnly, resultHandler.ListByCourse)
	api.GET("/courses/:id/results/export", teacherOnly, resultHandler.Export)
	api.GET("/results/me", studentOnly, resultHandler.MyResults)
	api.PUT("/results/:id/visibility", teacherOnly, resultHandler.SetVisibility)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("server stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}

// originChecker admits websocket upgrades from configured origins. An empty
// allow list admits everything, matching the CORS middleware's dev default.
func originChecker(allowed []string) func(r *http.Request) bool {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowedSet) == 0 {
			return true
		}
		_, ok := allowedSet[origin]
		return ok
	}
}
