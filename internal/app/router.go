// internal/app/router.go
package app

import (
	campaignHandler "smartdeals-service/internal/handlers/campaign"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	CampaignHandler *campaignHandler.CampaignHandler
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Campaigns ====================
	campaigns := api.Group("/campaigns")
	{
		// CRUD
		campaigns.POST("", h.CampaignHandler.CreateCampaign)
		campaigns.GET("", h.CampaignHandler.ListCampaigns)
		campaigns.GET("/stats", h.CampaignHandler.GetCampaignStats)
		campaigns.GET("/recently-expired", h.CampaignHandler.RecentlyExpired)
		campaigns.GET("/:id", h.CampaignHandler.GetCampaign)
		campaigns.PUT("/:id", h.CampaignHandler.UpdateCampaign)
		campaigns.DELETE("/:id", h.CampaignHandler.DeleteCampaign)

		// Status management
		campaigns.PUT("/:id/activate", h.CampaignHandler.ActivateCampaign)
		campaigns.PUT("/:id/pause", h.CampaignHandler.PauseCampaign)
		campaigns.PUT("/:id/archive", h.CampaignHandler.ArchiveCampaign)
		campaigns.PUT("/:id/expire", h.CampaignHandler.ExpireCampaign)

		// Utilities
		campaigns.POST("/:id/duplicate", h.CampaignHandler.DuplicateCampaign)
		campaigns.POST("/process-scheduled", h.CampaignHandler.ProcessScheduled)
	}
}
