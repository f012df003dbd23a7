package focus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hypernova-labs/fiscal-hub/internal/config"
	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{}
	cfg.Focus = config.FocusConfig{
		Token:   "token-padrao",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}
	return NewClient(cfg, logger)
}

func TestCreateDocument_RequestShape(t *testing.T) {
	var gotPath, gotRef, gotUser string
	var gotBody map[string]interface{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRef = r.URL.Query().Get("ref")
		gotUser, _, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"processando_autorizacao","ref":"ref-1"}`))
	})

	resp, err := client.CreateDocument(context.Background(), models.DocumentTypeNFSe, "ref-1", []byte(`{"valor":10}`))
	require.NoError(t, err)

	assert.Equal(t, "/v2/nfse", gotPath)
	assert.Equal(t, "ref-1", gotRef)
	assert.Equal(t, "token-padrao", gotUser)
	assert.Equal(t, float64(10), gotBody["valor"])
	assert.True(t, resp.OK)
	assert.Equal(t, "processando_autorizacao", resp.Fields()["status"])
}

func TestWithToken_OverridesCredential(t *testing.T) {
	var gotUser string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUser, _, _ = r.BasicAuth()
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.WithToken("token-do-tenant").GetDocument(context.Background(), models.DocumentTypeNFe, "ref-1", false)
	require.NoError(t, err)
	assert.Equal(t, "token-do-tenant", gotUser)

	// token vazio mantém a credencial padrão
	_, err = client.WithToken("").GetDocument(context.Background(), models.DocumentTypeNFe, "ref-1", false)
	require.NoError(t, err)
	assert.Equal(t, "token-padrao", gotUser)
}

func TestCancelDocument_JustificationLength(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.CancelDocument(context.Background(), models.DocumentTypeNFe, "ref-1", "curta demais")

	var invalid *models.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "justificativa", invalid.Field)
}

func TestCancelDocument_SendsDeleteWithBody(t *testing.T) {
	var gotMethod string
	var gotBody map[string]string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"status":"cancelado"}`))
	})

	resp, err := client.CancelDocument(context.Background(), models.DocumentTypeNFe, "ref-1", "erro de digitação no destinatário")
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "erro de digitação no destinatário", gotBody["justificativa"])
	assert.True(t, resp.OK)
}

func TestDownloadDocument_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	found, data, err := client.DownloadDocument(context.Background(), models.DocumentTypeNFSe, "ref-1", models.ArtifactPDF)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, data)
}

func TestDownloadDocument_Success(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	found, data, err := client.DownloadDocument(context.Background(), models.DocumentTypeNFSe, "ref-1", models.ArtifactPDF)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "/v2/nfse/ref-1.pdf", gotPath)
	assert.Equal(t, []byte("%PDF-1.4"), data)
}

func TestDownloadDocument_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"erro":"indisponivel"}`))
	})

	found, _, err := client.DownloadDocument(context.Background(), models.DocumentTypeNFSe, "ref-1", models.ArtifactXML)
	assert.False(t, found)

	var gateway *models.GatewayError
	require.ErrorAs(t, err, &gateway)
	assert.Equal(t, http.StatusInternalServerError, gateway.StatusCode)
}

func TestResponse_ErrorPassthrough(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"codigo":"nfe_nao_autorizada","mensagem":"CNPJ invalido"}`))
	})

	resp, err := client.GetDocument(context.Background(), models.DocumentTypeNFe, "ref-1", true)
	require.NoError(t, err)

	// respostas de erro da Focus não são erros de transporte
	assert.False(t, resp.OK)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var gateway *models.GatewayError
	require.ErrorAs(t, resp.AsError(), &gateway)
}

func TestManifestNFe_Payload(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{}`))
	})

	chave := "53250819019208000180651110000176579999823420"
	_, err := client.ManifestNFe(context.Background(), chave, "ciencia", "")
	require.NoError(t, err)

	assert.Equal(t, "/v2/nfe/"+chave+"/manifestar", gotPath)
	assert.Equal(t, "ciencia", gotBody["tipo"])
	_, hasJustificativa := gotBody["justificativa"]
	assert.False(t, hasJustificativa)
}

func TestCorrectionLetter_MinLength(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	var invalid *models.ValidationError
	_, err := client.CorrectionLetter(context.Background(), "ref-1", "curta")
	require.ErrorAs(t, err, &invalid)
}

func TestListReceivedNFe_Query(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := client.ListReceivedNFe(context.Background(), "19019208000180", 2)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "cnpj=19019208000180")
	assert.Contains(t, gotQuery, "pagina=2")
}
