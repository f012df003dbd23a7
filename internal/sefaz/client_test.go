package sefaz

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBase64(t *testing.T, content string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestFetchDistribution_ParsesResponse(t *testing.T) {
	doc := gzipBase64(t, "<resNFe>nota</resNFe>")
	var gotEnvelope string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotEnvelope = string(body)

		w.Header().Set("Content-Type", "application/soap+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <nfeDistDFeInteresseResponse xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe">
      <nfeDistDFeInteresseResult>
        <retDistDFeInt xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.01">
          <cStat>138</cStat>
          <xMotivo>Documento(s) localizado(s)</xMotivo>
          <ultNSU>000000000000020</ultNSU>
          <maxNSU>000000000000020</maxNSU>
          <loteDistDFeInt>
            <docZip NSU="000000000000020" schema="resNFe_v1.01.xsd">%s</docZip>
          </loteDistDFeInt>
        </retDistDFeInt>
      </nfeDistDFeInteresseResult>
    </nfeDistDFeInteresseResponse>
  </soap:Body>
</soap:Envelope>`, doc)
	}))
	t.Cleanup(server.Close)

	client := &Client{
		httpClient: server.Client(),
		endpoint:   server.URL,
		cnpj:       "19019208000180",
		logger:     testLogger(),
	}

	result, err := client.FetchDistribution(context.Background(), "19")
	require.NoError(t, err)

	// cursor vai com zeros à esquerda e CNPJ do contribuinte
	assert.Contains(t, gotEnvelope, "<ultNSU>000000000000019</ultNSU>")
	assert.Contains(t, gotEnvelope, "<CNPJ>19019208000180</CNPJ>")

	assert.Equal(t, StatDocsLocated, result.Stat)
	assert.Equal(t, "000000000000020", result.LastNSU)
	assert.False(t, result.HasMore())
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "000000000000020", result.Documents[0].NSU)
	assert.Equal(t, "resNFe_v1.01.xsd", result.Documents[0].Schema)
	assert.Equal(t, []byte("<resNFe>nota</resNFe>"), result.Documents[0].XML)
}

func TestFetchDistribution_NoDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <nfeDistDFeInteresseResponse>
      <nfeDistDFeInteresseResult>
        <retDistDFeInt>
          <cStat>137</cStat>
          <xMotivo>Nenhum documento localizado</xMotivo>
          <ultNSU>000000000000020</ultNSU>
          <maxNSU>000000000000020</maxNSU>
        </retDistDFeInt>
      </nfeDistDFeInteresseResult>
    </nfeDistDFeInteresseResponse>
  </soap:Body>
</soap:Envelope>`)
	}))
	t.Cleanup(server.Close)

	client := &Client{
		httpClient: server.Client(),
		endpoint:   server.URL,
		cnpj:       "19019208000180",
		logger:     testLogger(),
	}

	result, err := client.FetchDistribution(context.Background(), "20")
	require.NoError(t, err)
	assert.Equal(t, StatNoDocuments, result.Stat)
	assert.Empty(t, result.Documents)
}
