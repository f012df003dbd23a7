package focus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hypernova-labs/fiscal-hub/internal/config"
	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/sirupsen/logrus"
)

// Client é o gateway para a API Focus NFe v2. Cada operação é uma chamada
// síncrona com timeout limitado; política de retry pertence ao chamador.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *logrus.Logger
}

// Response representa o resultado normalizado de uma chamada à Focus
type Response struct {
	StatusCode int
	Body       json.RawMessage
	OK         bool
}

// Decode desserializa o corpo da resposta
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Fields extrai o corpo como mapa genérico; retorna mapa vazio se o corpo
// não for um objeto JSON
func (r *Response) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if len(r.Body) > 0 {
		_ = json.Unmarshal(r.Body, &fields)
	}
	return fields
}

// AsError converte uma resposta não-2xx em GatewayError
func (r *Response) AsError() error {
	if r.OK {
		return nil
	}
	return &models.GatewayError{StatusCode: r.StatusCode, Body: r.Body}
}

// NewClient cria um novo cliente usando o token padrão do processo
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Focus.Timeout},
		baseURL:    cfg.GetFocusBaseURL(),
		token:      cfg.Focus.Token,
		logger:     logger,
	}
}

// WithToken retorna uma cópia do cliente autenticando com outro token.
// Suporta o cenário multi-cliente em que cada requisição pode trazer a
// credencial do tenant; token vazio mantém o padrão do processo.
func (c *Client) WithToken(token string) *Client {
	if token == "" {
		return c
	}
	clone := *c
	clone.token = token
	return &clone
}

// request executa a chamada HTTP e normaliza a resposta
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}

	// Autenticação da Focus: token como usuário, senha vazia
	req.SetBasicAuth(c.token, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.GatewayError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.GatewayError{Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("Focus API call completed")

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
	}, nil
}

// CreateDocument envia um documento para a fila de processamento da Focus
func (c *Client) CreateDocument(ctx context.Context, docType models.DocumentType, reference string, payload json.RawMessage) (*Response, error) {
	query := url.Values{"ref": {reference}}
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/v2/%s", docType), query, payload)
}

// GetDocument consulta um documento; completa inclui PDF, XML e status
func (c *Client) GetDocument(ctx context.Context, docType models.DocumentType, reference string, completa bool) (*Response, error) {
	var query url.Values
	if completa {
		query = url.Values{"completa": {"1"}}
	}
	return c.request(ctx, http.MethodGet, fmt.Sprintf("/v2/%s/%s", docType, reference), query, nil)
}

// CancelDocument cancela um documento autorizado. A justificativa deve ter
// no mínimo 15 caracteres.
func (c *Client) CancelDocument(ctx context.Context, docType models.DocumentType, reference, justificativa string) (*Response, error) {
	if len(justificativa) < 15 {
		return nil, &models.ValidationError{Field: "justificativa", Message: "must be at least 15 characters"}
	}
	payload := map[string]string{"justificativa": justificativa}
	return c.request(ctx, http.MethodDelete, fmt.Sprintf("/v2/%s/%s", docType, reference), nil, payload)
}

// DownloadDocument baixa o artefato renderizado (pdf ou xml) de um
// documento. Retorna found=false quando a Focus responde 404.
func (c *Client) DownloadDocument(ctx context.Context, docType models.DocumentType, reference string, kind models.ArtifactKind) (bool, []byte, error) {
	endpoint := fmt.Sprintf("%s/v2/%s/%s.%s", c.baseURL, docType, reference, kind)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, nil, fmt.Errorf("error building download request: %w", err)
	}
	req.SetBasicAuth(c.token, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, nil, &models.GatewayError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil, nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, &models.GatewayError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return false, nil, &models.GatewayError{StatusCode: resp.StatusCode, Body: data}
	}

	return true, data, nil
}

// SendEmail solicita à Focus o envio do documento para os emails informados
func (c *Client) SendEmail(ctx context.Context, docType models.DocumentType, reference string, emails []string) (*Response, error) {
	payload := map[string][]string{"emails": emails}
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/v2/%s/%s/email", docType, reference), nil, payload)
}

// RegisterWebhook registra um hook que notifica nossa API em mudança de status
func (c *Client) RegisterWebhook(ctx context.Context, event, hookURL string) (*Response, error) {
	payload := map[string]string{"event": event, "url": hookURL}
	return c.request(ctx, http.MethodPost, "/v2/hooks", nil, payload)
}

// ListDocuments lista documentos de um tipo com filtros opcionais
func (c *Client) ListDocuments(ctx context.Context, docType models.DocumentType, params url.Values) (*Response, error) {
	return c.request(ctx, http.MethodGet, fmt.Sprintf("/v2/%s", docType), params, nil)
}

// ListReceivedNFe consulta as NFe emitidas contra o CNPJ informado
func (c *Client) ListReceivedNFe(ctx context.Context, cnpj string, page int) (*Response, error) {
	query := url.Values{"cnpj": {cnpj}}
	if page > 0 {
		query.Set("pagina", strconv.Itoa(page))
	}
	return c.request(ctx, http.MethodGet, "/v2/nfe_recebidas", query, nil)
}

// ManifestNFe realiza a Manifestação do Destinatário (MDe).
// Tipos válidos: ciencia, confirmacao, desconhecimento, operacao_nao_realizada.
func (c *Client) ManifestNFe(ctx context.Context, chaveNFe, tipo, justificativa string) (*Response, error) {
	payload := map[string]string{"tipo": tipo}
	if justificativa != "" {
		payload["justificativa"] = justificativa
	}
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/v2/nfe/%s/manifestar", chaveNFe), nil, payload)
}

// CorrectionLetter envia uma Carta de Correção Eletrônica (CC-e) para a NFe
func (c *Client) CorrectionLetter(ctx context.Context, reference, correcao string) (*Response, error) {
	if len(correcao) < 15 {
		return nil, &models.ValidationError{Field: "correcao", Message: "must be at least 15 characters"}
	}
	payload := map[string]string{"correcao": correcao}
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/v2/nfe/%s/carta_correcao", reference), nil, payload)
}

// CloseMDFe encerra um MDFe autorizado informando o município de encerramento
func (c *Client) CloseMDFe(ctx context.Context, reference, codigoMunicipio string) (*Response, error) {
	payload := map[string]string{"fechamento_municipio": codigoMunicipio}
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/v2/mdfe/%s/encerrar", reference), nil, payload)
}

// CityRequirements retorna os requisitos do município para emissão de NFSe
func (c *Client) CityRequirements(ctx context.Context, codigoIBGE string) (*Response, error) {
	return c.request(ctx, http.MethodGet, fmt.Sprintf("/v2/municipios/%s", codigoIBGE), nil, nil)
}
