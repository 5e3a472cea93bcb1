package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) RegisterRoutes(r *gin.Engine) {
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/themes", s.themes)
		api.POST("/compose", s.compose)
		api.POST("/caption", s.caption)
		api.Any("/metering", s.metering)

		walls := api.Group("/walls/:session")
		{
			walls.GET("/photos", s.listPhotos)
			walls.POST("/photos", s.addPhoto)
			walls.PATCH("/photos/:id", s.movePhoto)
			walls.DELETE("/photos/:id", s.deletePhoto)
			walls.GET("/photos/:id/export", s.exportPhoto)
			walls.GET("/photos/:id/qr", s.photoQR)
			walls.GET("/theme", s.getTheme)
			walls.PUT("/theme", s.setTheme)
		}
	}
}
