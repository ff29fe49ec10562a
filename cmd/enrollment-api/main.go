package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/uniplan/enrollment-api/internal/handler"
	"github.com/uniplan/enrollment-api/internal/middleware"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/repository"
	"github.com/uniplan/enrollment-api/internal/service"
	"github.com/uniplan/enrollment-api/pkg/cache"
	"github.com/uniplan/enrollment-api/pkg/config"
	"github.com/uniplan/enrollment-api/pkg/database"
	"github.com/uniplan/enrollment-api/pkg/export"
	"github.com/uniplan/enrollment-api/pkg/jobs"
	"github.com/uniplan/enrollment-api/pkg/logger"
	"github.com/uniplan/enrollment-api/pkg/middleware/cors"
	"github.com/uniplan/enrollment-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	sugar := log.Sugar()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer func() { _ = db.Close() }()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Fatalw("failed to connect to redis", "error", err)
	}
	defer func() { _ = redisClient.Close() }()
	snapshot := cache.NewSnapshot(redisClient, cfg.Optimizer.JobStatusCacheTTL)

	selectionRepo := repository.NewSelectionRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	timeBlockRepo := repository.NewTimeBlockRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	professorRepo := repository.NewProfessorRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	jobRepo := repository.NewScheduleJobRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var (
		personalSvc    *service.PersonalScheduleService
		institutionSvc *service.InstitutionScheduleService
	)

	runJob := func(ctx context.Context, job jobs.Job) error {
		start := time.Now()
		var err error
		switch models.ScheduleJobType(job.Type) {
		case models.ScheduleJobInstitution:
			err = institutionSvc.ProcessJob(ctx, job)
		default:
			err = personalSvc.ProcessJob(ctx, job)
		}
		status := "success"
		if err != nil {
			status = "failure"
		}
		metricsSvc.ObserveRun(job.Type, status, time.Since(start))
		return err
	}

	queue := jobs.NewQueue("schedule-runs", runJob, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     log,
	})

	personalSvc = service.NewPersonalScheduleService(
		jobRepo, selectionRepo, sectionRepo, timeBlockRepo, preferenceRepo,
		scheduleRepo, queue, snapshot, validate, log, cfg.Optimizer,
	)
	institutionSvc = service.NewInstitutionScheduleService(
		jobRepo, sectionRepo, classroomRepo, professorRepo, timeBlockRepo,
		preferenceRepo, scheduleRepo, queue, snapshot, validate, log, cfg.Optimizer,
	)
	preferenceSvc := service.NewPreferenceService(preferenceRepo, validate, log)
	scheduleSvc := service.NewScheduleService(scheduleRepo, sectionRepo, export.NewCSVExporter(), export.NewPDFExporter(), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()

	// Requeue runs that were interrupted by a previous shutdown.
	personalSvc.RecoverPendingJobs(ctx)
	institutionSvc.RecoverPendingJobs(ctx)

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metricsSvc.SetQueueDepth(queue.Depth())
			}
		}
	}()

	scheduleHandler := handler.NewScheduleHandler(personalSvc, institutionSvc)
	preferenceHandler := handler.NewPreferenceHandler(preferenceSvc)
	exportHandler := handler.NewExportHandler(scheduleSvc, cfg.Exports.Enabled)

	tokenValidator := middleware.NewTokenValidator(cfg.JWT.Secret)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(cors.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(tokenValidator))
	{
		api.GET("/preferences", preferenceHandler.Get)
		api.PUT("/preferences", preferenceHandler.Upsert)

		schedules := api.Group("/schedules")
		{
			schedules.GET("", exportHandler.List)
			schedules.GET("/:id/export", exportHandler.Export)

			personal := schedules.Group("/personal")
			personal.Use(middleware.RBAC(models.RoleStudent, models.RoleStaff, models.RoleAdmin))
			{
				personal.POST("/generate", scheduleHandler.GeneratePersonal)
				personal.GET("/jobs/:id", scheduleHandler.PersonalStatus)
			}

			institution := schedules.Group("/institution")
			institution.Use(middleware.RBAC(models.RoleStaff, models.RoleAdmin))
			{
				institution.POST("/generate", scheduleHandler.GenerateInstitution)
				institution.GET("/jobs/:id", scheduleHandler.InstitutionStatus)
			}
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		sugar.Infow("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server error", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("forced shutdown", "error", err)
	}
}
