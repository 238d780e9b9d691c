package app

import (
	"github.com/osvaldoandrade/aquaq/internal/controllers"
	"github.com/osvaldoandrade/aquaq/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupMappings(app *Application) {
	api := app.Engine.Group("/api")
	{
		api.POST("/upload",
			middleware.RateLimitUpload(app.RateLimiter, app.Config),
			controllers.NewUploadController(app.Manager, app.Runner, app.Uploads, app.Config, app.Logger).Handle)

		api.GET("/status/:id", controllers.NewStatusController(app.Manager).Handle)
		api.GET("/stream/:id", controllers.NewStreamController(app.Manager, app.Logger).Handle)
		api.GET("/result/:id", controllers.NewResultController(app.Manager, app.Tracker).Handle)
		api.GET("/preview/:id", controllers.NewPreviewController(app.Manager).Handle)
		api.GET("/download/:id", controllers.NewDownloadController(app.Manager, app.Tracker, app.Logger).Handle)
		api.GET("/report-status/:id", controllers.NewReportStatusController(app.Tracker).Handle)

		api.GET("/health", controllers.NewHealthController(app.Manager, app.Tracker).Handle)
	}

	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
