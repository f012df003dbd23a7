package sefaz

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hypernova-labs/fiscal-hub/internal/config"
	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// DistributionEndpoint é o endpoint do Ambiente Nacional para o
	// serviço NFeDistribuicaoDFe
	DistributionEndpoint = "https://www1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx"

	// códigos de retorno do serviço de distribuição
	StatDocsLocated = "138"
	StatNoDocuments = "137"

	// cUFAutor do Ambiente Nacional
	ufAmbienteNacional = "91"
)

// Client consulta o serviço de distribuição de DF-e da SEFAZ usando o
// certificado digital A1 do contribuinte
type Client struct {
	httpClient *http.Client
	endpoint   string
	cnpj       string
	logger     *logrus.Logger
}

// Document é um documento fiscal retornado pela distribuição, já
// descompactado
type Document struct {
	NSU    string
	Schema string
	XML    []byte
}

// DistributionResult é o resultado de uma consulta de distribuição
type DistributionResult struct {
	Stat      string
	Reason    string
	LastNSU   string
	MaxNSU    string
	Documents []Document
}

// HasMore indica se ainda há documentos além do último NSU retornado
func (r *DistributionResult) HasMore() bool {
	return r.Stat == StatDocsLocated && r.LastNSU != "" && r.LastNSU < r.MaxNSU
}

// NewClient cria um cliente de distribuição carregando o par
// certificado/chave do contribuinte
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	cert, err := tls.LoadX509KeyPair(cfg.Sefaz.CertFile, cfg.Sefaz.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("error loading client certificate: %w", err)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Sefaz.Timeout,
		},
		endpoint: DistributionEndpoint,
		cnpj:     cfg.Sefaz.CNPJ,
		logger:   logger,
	}, nil
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"http://www.w3.org/2003/05/soap-envelope Envelope"`
	Body    soapBody `xml:"Body"`
}

type soapBody struct {
	Response distResponse `xml:"nfeDistDFeInteresseResponse"`
}

type distResponse struct {
	Result distResult `xml:"nfeDistDFeInteresseResult"`
}

type distResult struct {
	Ret retDistDFe `xml:"retDistDFeInt"`
}

type retDistDFe struct {
	Stat    string   `xml:"cStat"`
	Reason  string   `xml:"xMotivo"`
	LastNSU string   `xml:"ultNSU"`
	MaxNSU  string   `xml:"maxNSU"`
	Lot     *distLot `xml:"loteDistDFeInt"`
}

type distLot struct {
	Docs []docZip `xml:"docZip"`
}

type docZip struct {
	NSU     string `xml:"NSU,attr"`
	Schema  string `xml:"schema,attr"`
	Content string `xml:",chardata"`
}

// FetchDistribution consulta os documentos emitidos contra o CNPJ a
// partir do NSU informado
func (c *Client) FetchDistribution(ctx context.Context, lastNSU string) (*DistributionResult, error) {
	if lastNSU == "" {
		lastNSU = "0"
	}

	envelope := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
  <soap12:Body>
    <nfeDistDFeInteresse xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe">
      <nfeDadosMsg>
        <distDFeInt xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.01">
          <tpAmb>1</tpAmb>
          <cUFAutor>%s</cUFAutor>
          <CNPJ>%s</CNPJ>
          <distNSU><ultNSU>%015s</ultNSU></distNSU>
        </distDFeInt>
      </nfeDadosMsg>
    </nfeDistDFeInteresse>
  </soap12:Body>
</soap12:Envelope>`, ufAmbienteNacional, c.cnpj, lastNSU)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBufferString(envelope))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.GatewayError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &models.GatewayError{StatusCode: resp.StatusCode, Body: body}
	}

	var env soapEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("error parsing distribution response: %w", err)
	}

	ret := env.Body.Response.Result.Ret
	result := &DistributionResult{
		Stat:    ret.Stat,
		Reason:  ret.Reason,
		LastNSU: ret.LastNSU,
		MaxNSU:  ret.MaxNSU,
	}

	if ret.Lot != nil {
		for _, doc := range ret.Lot.Docs {
			content, err := decodeDocZip(doc.Content)
			if err != nil {
				c.logger.WithError(err).WithField("nsu", doc.NSU).Warn("Error decoding distribution document")
				continue
			}
			result.Documents = append(result.Documents, Document{
				NSU:    doc.NSU,
				Schema: doc.Schema,
				XML:    content,
			})
		}
	}

	c.logger.WithFields(logrus.Fields{
		"stat":      result.Stat,
		"documents": len(result.Documents),
		"last_nsu":  result.LastNSU,
		"duration":  time.Since(start).String(),
	}).Info("Distribution query completed")

	return result, nil
}

// decodeDocZip desfaz o base64 e o gzip de um docZip
func decodeDocZip(content string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64: %w", err)
	}

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("error opening gzip stream: %w", err)
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
