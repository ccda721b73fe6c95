package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/teacher-training-api/api/swagger"
	"github.com/noah-isme/teacher-training-api/internal/handler"
	"github.com/noah-isme/teacher-training-api/internal/middleware"
	"github.com/noah-isme/teacher-training-api/internal/models"
	"github.com/noah-isme/teacher-training-api/pkg/config"
	"github.com/noah-isme/teacher-training-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/teacher-training-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/teacher-training-api/pkg/middleware/requestid"
)

func newRouter(ctx context.Context, a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))

	checks := map[string]handler.Pinger{"postgres": a.db}
	if a.redis != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return a.redis.Ping(ctx).Err() })
	}
	metricsHandler := handler.NewMetricsHandler(a.metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if a.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(a.auth)
	issueHandler := handler.NewIssueHandler(a.submissions, a.issues)
	trainingHandler := handler.NewTrainingHandler(a.trainings, a.progress, a.feedback)
	moduleHandler := handler.NewModuleHandler(a.modules)
	statsHandler := handler.NewStatsHandler(a.stats)
	activityHandler := handler.NewActivityHandler(a.activity)
	teacherAccounts := handler.NewAccountHandler(a.accounts, models.RoleTeacher)
	allAccounts := handler.NewAccountHandler(a.accounts, "")

	api := r.Group(a.cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(a.auth), authHandler.Logout)
	auth.GET("/me", middleware.JWT(a.auth), authHandler.Me)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth))

	submitLimiter := middleware.RateLimiter(ctx, a.cfg.RateLimit.SubmissionsPerWindow, a.cfg.RateLimit.Window)
	issues := secured.Group("/issues")
	issues.POST("", middleware.RequireRoles(models.RoleTeacher), submitLimiter, issueHandler.Submit)
	issues.GET("/mine", issueHandler.ListMine)
	issues.GET("/:id", issueHandler.Get)

	trainings := secured.Group("/trainings")
	trainings.GET("/mine", trainingHandler.ListMine)
	trainings.GET("/:id", trainingHandler.Get)
	trainings.PATCH("/:id/progress", trainingHandler.UpdateProgress)
	trainings.PATCH("/:id/video", trainingHandler.UpdateVideo)
	trainings.POST("/:id/feedback", trainingHandler.SubmitFeedback)
	trainings.GET("/:id/certificate",
		middleware.Audit(a.audits, a.logger, models.AuditActionCertificate, "training_assignments"),
		trainingHandler.Certificate)
	trainings.POST("/:id/certificate/share", trainingHandler.ShareCertificate)

	api.GET("/certificates/shared/:token",
		middleware.OptionalJWT(a.auth),
		middleware.Audit(a.audits, a.logger, models.AuditActionCertificateShared, "training_assignments"),
		trainingHandler.SharedCertificate)

	secured.POST("/accounts/:id/password",
		middleware.RBAC(string(models.RoleSuperAdmin), middleware.Self),
		allAccounts.ChangePassword)

	modules := secured.Group("/modules")
	modules.GET("", moduleHandler.List)
	modules.GET("/:id", moduleHandler.Get)

	admin := secured.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/issues", issueHandler.AdminList)
	admin.PATCH("/issues/:id/status", issueHandler.UpdateStatus)
	admin.DELETE("/issues/:id", issueHandler.Delete)
	admin.GET("/stats", statsHandler.Dashboard)
	admin.GET("/activity", activityHandler.List)
	admin.GET("/trainings", trainingHandler.AdminList)
	admin.GET("/trainings/export", trainingHandler.Export)
	admin.POST("/modules", moduleHandler.Create)
	admin.PUT("/modules/:id", moduleHandler.Update)
	admin.DELETE("/modules/:id", moduleHandler.Delete)
	admin.GET("/teachers", teacherAccounts.List)
	admin.POST("/teachers", teacherAccounts.Create)
	admin.GET("/teachers/:id", teacherAccounts.Get)
	admin.PUT("/teachers/:id", teacherAccounts.Update)
	admin.DELETE("/teachers/:id", teacherAccounts.Delete)

	accounts := admin.Group("/accounts")
	accounts.Use(middleware.RequireRoles(models.RoleSuperAdmin))
	accounts.GET("", allAccounts.List)
	accounts.POST("", allAccounts.Create)
	accounts.GET("/:id", allAccounts.Get)
	accounts.PUT("/:id", allAccounts.Update)
	accounts.DELETE("/:id", allAccounts.Delete)

	return r
}
