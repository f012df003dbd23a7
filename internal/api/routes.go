package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/fiscal-hub/internal/database"
)

// SetupRoutes registra todas as rotas do serviço no router
func (api *API) SetupRoutes(r *gin.Engine, db *database.DB) {
	r.GET("/health", func(c *gin.Context) {
		if err := db.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "fiscal-hub"})
	})

	// notificações da Focus entram fora do grupo versionado, no caminho
	// que fica registrado no hook
	r.POST("/webhooks/focusnfe", api.ReceiveWebhook)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/documents/:type", api.EmitDocument)
		v1.GET("/documents/:type", api.ListDocuments)
		v1.DELETE("/documents/:type/:reference", api.CancelDocument)
		v1.POST("/documents/:type/:reference/email", api.ForwardEmail)

		v1.GET("/local/:reference", api.GetDocument)
		v1.GET("/local/:reference/timeline", api.GetTimeline)
		v1.GET("/status/:status", api.ListByStatus)
		v1.GET("/dashboard/counts", api.GetStatusCounts)

		v1.POST("/hooks", api.RegisterHook)
		v1.GET("/webhooks", api.ListWebhooks)

		v1.GET("/received/nfe", api.ListReceivedNFe)
		v1.POST("/received/nfe/:chave/manifest", api.ManifestNFe)
		v1.POST("/nfe/:reference/correction-letter", api.CorrectionLetter)
		v1.POST("/mdfe/:reference/close", api.CloseMDFe)

		v1.GET("/municipalities/:ibge", api.CityRequirements)
	}
}
