package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

// NewRouter mounts every endpoint. With auth enabled, writes need ADMIN and
// reads accept ADMIN or VIEWER.
func NewRouter(cfg *config.Config, logr *zap.Logger, db handler.Pinger, svcs Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(svcs.Metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	health := handler.NewHealthHandler(svcs.Metrics, db)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)
	r.GET("/metrics/summary", health.Summary)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	var read, write gin.HandlerFunc = noop, noop
	api := r.Group(cfg.APIPrefix)
	if cfg.JWT.Enabled {
		api.Use(internalmiddleware.JWT(svcs.Auth))
		read = internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleViewer)
		write = internalmiddleware.RequireRoles(models.RoleAdmin)
	}

	skills := handler.NewSkillHandler(svcs.Skills)
	teachers := handler.NewTeacherHandler(svcs.Teachers)
	imports := handler.NewImportHandler(svcs.Imports, cfg.Import.MaxUploadBytes)
	schedule := handler.NewScheduleHandler(svcs.Grid, svcs.Export)
	allocations := handler.NewAllocationHandler(svcs.Allocation)

	api.GET("/skills", read, skills.List)
	api.POST("/skills", write, skills.Create)
	api.POST("/skills/import", write, imports.Skills)
	api.GET("/skills/:id", read, skills.Get)
	api.PUT("/skills/:id", write, skills.Update)
	api.DELETE("/skills/:id", write, skills.Delete)

	api.GET("/teachers", read, teachers.List)
	api.POST("/teachers", write, teachers.Create)
	api.POST("/teachers/import", write, imports.Teachers)
	api.GET("/teachers/:id", read, teachers.Get)
	api.PUT("/teachers/:id", write, teachers.Update)
	api.DELETE("/teachers/:id", write, teachers.Delete)

	api.GET("/schedule", read, schedule.Schedule)
	api.PUT("/schedule/cells", write, schedule.SaveCell)
	api.DELETE("/schedule/cells", write, schedule.ClearCell)
	api.POST("/schedule/repair", write, schedule.Repair)
	api.GET("/schedule/export", read, schedule.Export)

	api.POST("/allocations", write, allocations.Run)
	api.GET("/allocations", read, allocations.List)
	api.GET("/allocations/:id", read, allocations.Get)

	return r
}

func noop(c *gin.Context) {
	c.Next()
}
