package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hypernova-labs/fiscal-hub/internal/database"
	"github.com/hypernova-labs/fiscal-hub/internal/focus"
	"github.com/hypernova-labs/fiscal-hub/internal/lifecycle"
	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/hypernova-labs/fiscal-hub/internal/webhooks"
	"github.com/hypernova-labs/fiscal-hub/internal/workflows"
	"github.com/sirupsen/logrus"
)

// API concentra os handlers HTTP do serviço
type API struct {
	focusClient *focus.Client
	docRepo     *database.DocumentRepository
	webhookRepo *database.WebhookRepository
	pipeline    *webhooks.Pipeline
	redis       *database.Redis
	inngest     *workflows.InngestClient
	logger      *logrus.Logger
}

// NewAPI cria uma nova instância da API
func NewAPI(
	focusClient *focus.Client,
	docRepo *database.DocumentRepository,
	webhookRepo *database.WebhookRepository,
	pipeline *webhooks.Pipeline,
	redis *database.Redis,
	inngest *workflows.InngestClient,
	logger *logrus.Logger,
) *API {
	return &API{
		focusClient: focusClient,
		docRepo:     docRepo,
		webhookRepo: webhookRepo,
		pipeline:    pipeline,
		redis:       redis,
		inngest:     inngest,
		logger:      logger,
	}
}

// client resolve o cliente Focus da requisição, honrando o token por
// tenant enviado no header X-Focus-Token
func (api *API) client(c *gin.Context) *focus.Client {
	return api.focusClient.WithToken(c.GetHeader("X-Focus-Token"))
}

// EmitDocument emite um novo documento fiscal do tipo informado e registra
// o documento local com status inicial "submitted"
func (api *API) EmitDocument(c *gin.Context) {
	docType := models.DocumentType(c.Param("type"))
	if !docType.Valid() {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Unknown document type", []models.ErrorDetail{
			{Field: "type", Issue: "must be one of nfse, nfe, nfce, cte, mdfe"},
		}))
		return
	}

	reference := c.Query("ref")
	if reference == "" {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Missing reference", []models.ErrorDetail{
			{Field: "ref", Issue: "required query parameter"},
		}))
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil || len(payload) == 0 {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Missing request body", nil))
		return
	}

	resp, err := api.client(c).CreateDocument(c.Request.Context(), docType, reference, payload)
	if err != nil {
		api.logger.WithError(err).Error("Error submitting document to Focus")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	// erro da Focus é repassado ao chamador sem criar documento local
	if !resp.OK {
		c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
		return
	}

	fields := resp.Fields()
	var externalID *string
	if id, ok := fields["id"]; ok && id != nil {
		s := fmt.Sprintf("%v", id)
		externalID = &s
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:               uuid.New(),
		Reference:        reference,
		ExternalID:       externalID,
		DocumentType:     docType,
		Status:           lifecycle.StatusSubmitted,
		SubmittedPayload: payload,
		LastResponse:     resp.Body,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := api.docRepo.Create(c.Request.Context(), doc); err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, models.NewConflictErrorResponse("Reference already used"))
			return
		}
		api.logger.WithError(err).Error("Error creating local document")
		c.JSON(http.StatusInternalServerError, models.NewInternalErrorResponse("Error persisting document"))
		return
	}

	if api.inngest != nil {
		data := map[string]interface{}{"reference": reference, "type": string(docType)}
		if err := api.inngest.Send(c.Request.Context(), "fiscal/document.submitted", data); err != nil {
			api.logger.WithError(err).Warn("Error publishing submitted event")
		}
	}

	c.Data(http.StatusCreated, "application/json; charset=utf-8", resp.Body)
}

// GetDocument retorna o registro local de um documento: status corrente,
// caminhos de artefatos e a última resposta da Focus
func (api *API) GetDocument(c *gin.Context) {
	reference := c.Param("reference")

	doc, err := api.docRepo.Get(c.Request.Context(), reference)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundErrorResponse("Document not found"))
			return
		}
		api.logger.WithError(err).Error("Error loading document")
		c.JSON(http.StatusInternalServerError, models.NewInternalErrorResponse("Error retrieving document"))
		return
	}

	c.JSON(http.StatusOK, doc)
}

// GetTimeline retorna a linha do tempo de eventos de um documento
func (api *API) GetTimeline(c *gin.Context) {
	reference := c.Param("reference")

	if _, err := api.docRepo.Get(c.Request.Context(), reference); err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, models.NewNotFoundErrorResponse("Document not found"))
			return
		}
		api.logger.WithError(err).Error("Error loading document")
		c.JSON(http.StatusInternalServerError, models.NewInternalErrorResponse("Error retrieving document"))
		return
	}

	events, err := api.docRepo.ListEvents(c.Request.Context(), reference)
	if err != nil {
		api.logger.WithError(err).Error("Error loading timeline")
		c.JSON(http.StatusInternalServerError, models.NewInternalErrorResponse("Error retrieving timeline"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"reference": reference, "events": events})
}

// ListByStatus lista documentos em um determinado status
func (api *API) ListByStatus(c *gin.Context) {
	status := c.Param("status")

	docs, err := api.docRepo.ListByStatus(c.Request.Context(), status)
	if err != nil {
		api.logger.WithError(err).Error("Error listing documents by status")
		c.JSON(http.StatusInternalServerError, models.NewInternalErrorResponse("Error listing documents"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status, "documents": docs})
}

// GetStatusCounts retorna a contagem agregada de documentos por status,
// com cache curto no Redis para o dashboard
func (api *API) GetStatusCounts(c *gin.Context) {
	ctx := c.Request.Context()

	if api.redis != nil {
		if counts, err := api.redis.GetStatusCounts(ctx); err == nil && counts != nil {
			c.JSON(http.StatusOK, gin.H{"counts": counts, "cached": true})
			return
		}
	}

	counts, err := api.docRepo.CountByStatus(ctx)
	if err != nil {
		api.logger.WithError(err).Error("Error counting documents by status")
		c.JSON(http.StatusInternalServerError, models.NewInternalErrorResponse("Error counting documents"))
		return
	}

	if api.redis != nil {
		if err := api.redis.SetStatusCounts(ctx, counts); err != nil {
			api.logger.WithError(err).Warn("Error caching status counts")
		}
	}

	c.JSON(http.StatusOK, gin.H{"counts": counts, "cached": false})
}

// CancelDocument cancela um documento junto à Focus. O resultado definitivo
// chega depois por webhook; aqui apenas repassamos a resposta síncrona.
func (api *API) CancelDocument(c *gin.Context) {
	docType := models.DocumentType(c.Param("type"))
	if !docType.Valid() {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Unknown document type", nil))
		return
	}
	reference := c.Param("reference")

	var body struct {
		Justificativa string `json:"justificativa"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Invalid request format", nil))
		return
	}

	resp, err := api.client(c).CancelDocument(c.Request.Context(), docType, reference, body.Justificativa)
	if err != nil {
		var invalid *models.ValidationError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse(invalid.Message, []models.ErrorDetail{
				{Field: invalid.Field, Issue: invalid.Message},
			}))
			return
		}
		api.logger.WithError(err).Error("Error cancelling document")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// ForwardEmail solicita à Focus o envio do documento por email
func (api *API) ForwardEmail(c *gin.Context) {
	docType := models.DocumentType(c.Param("type"))
	if !docType.Valid() {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Unknown document type", nil))
		return
	}
	reference := c.Param("reference")

	var body struct {
		Emails []string `json:"emails"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Emails) == 0 {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Missing emails", nil))
		return
	}

	resp, err := api.client(c).SendEmail(c.Request.Context(), docType, reference, body.Emails)
	if err != nil {
		api.logger.WithError(err).Error("Error forwarding email request")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// ReceiveWebhook recebe notificações de status da Focus. O corpo bruto é
// gravado antes do reconhecimento; o processamento acontece em segundo
// plano e nunca segura esta resposta.
func (api *API) ReceiveWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Unreadable body", nil))
		return
	}

	if err := api.pipeline.Ingest(c.Request.Context(), webhooks.ProviderFocusNFe, payload); err != nil {
		api.logger.WithError(err).Error("Error persisting webhook notification")
		c.JSON(http.StatusInternalServerError, models.NewInternalErrorResponse("Error persisting notification"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// ListWebhooks retorna as notificações mais recentes do log durável
func (api *API) ListWebhooks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := api.webhookRepo.List(c.Request.Context(), limit)
	if err != nil {
		api.logger.WithError(err).Error("Error listing webhook records")
		c.JSON(http.StatusInternalServerError, models.NewInternalErrorResponse("Error listing notifications"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

// RegisterHook registra junto à Focus o hook de notificação de status
func (api *API) RegisterHook(c *gin.Context) {
	var body struct {
		Event string `json:"event"`
		URL   string `json:"url"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Event == "" || body.URL == "" {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Missing event or url", nil))
		return
	}

	resp, err := api.client(c).RegisterWebhook(c.Request.Context(), body.Event, body.URL)
	if err != nil {
		api.logger.WithError(err).Error("Error registering webhook with Focus")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// ListReceivedNFe consulta as NFe emitidas contra o CNPJ informado
func (api *API) ListReceivedNFe(c *gin.Context) {
	cnpj := c.Query("cnpj")
	if cnpj == "" {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Missing cnpj", nil))
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("pagina", "1"))

	resp, err := api.client(c).ListReceivedNFe(c.Request.Context(), cnpj, page)
	if err != nil {
		api.logger.WithError(err).Error("Error listing received NFe")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// ManifestNFe realiza a Manifestação do Destinatário (MDe)
func (api *API) ManifestNFe(c *gin.Context) {
	chave := c.Param("chave")

	var body struct {
		Tipo          string `json:"tipo"`
		Justificativa string `json:"justificativa"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Tipo == "" {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Missing tipo", nil))
		return
	}

	resp, err := api.client(c).ManifestNFe(c.Request.Context(), chave, body.Tipo, body.Justificativa)
	if err != nil {
		api.logger.WithError(err).Error("Error manifesting NFe")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// CorrectionLetter envia uma Carta de Correção Eletrônica para a NFe
func (api *API) CorrectionLetter(c *gin.Context) {
	reference := c.Param("reference")

	var body struct {
		Correcao string `json:"correcao"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Invalid request format", nil))
		return
	}

	resp, err := api.client(c).CorrectionLetter(c.Request.Context(), reference, body.Correcao)
	if err != nil {
		var invalid *models.ValidationError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse(invalid.Message, []models.ErrorDetail{
				{Field: invalid.Field, Issue: invalid.Message},
			}))
			return
		}
		api.logger.WithError(err).Error("Error sending correction letter")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// CloseMDFe encerra um MDFe autorizado
func (api *API) CloseMDFe(c *gin.Context) {
	reference := c.Param("reference")

	var body struct {
		Municipio string `json:"fechamento_municipio"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Municipio == "" {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Missing fechamento_municipio", nil))
		return
	}

	resp, err := api.client(c).CloseMDFe(c.Request.Context(), reference, body.Municipio)
	if err != nil {
		api.logger.WithError(err).Error("Error closing MDFe")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// CityRequirements consulta os requisitos municipais para emissão de NFSe
func (api *API) CityRequirements(c *gin.Context) {
	resp, err := api.client(c).CityRequirements(c.Request.Context(), c.Param("ibge"))
	if err != nil {
		api.logger.WithError(err).Error("Error querying city requirements")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

// ListDocuments repassa a listagem de documentos da Focus com filtros
func (api *API) ListDocuments(c *gin.Context) {
	docType := models.DocumentType(c.Param("type"))
	if !docType.Valid() {
		c.JSON(http.StatusBadRequest, models.NewValidationErrorResponse("Unknown document type", nil))
		return
	}

	params := url.Values{}
	for _, key := range []string{"cnpj_prestador", "data_inicial", "data_final", "status"} {
		if v := c.Query(key); v != "" {
			params.Set(key, v)
		}
	}

	resp, err := api.client(c).ListDocuments(c.Request.Context(), docType, params)
	if err != nil {
		api.logger.WithError(err).Error("Error listing documents")
		c.JSON(http.StatusBadGateway, models.NewGatewayErrorResponse("Error reaching fiscal API"))
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}
