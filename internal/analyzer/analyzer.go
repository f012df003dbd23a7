package analyzer

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// alíquotas do regime não-cumulativo, em pontos-base (1.65% = 165)
const (
	PISRateBasisPoints    = 165
	COFINSRateBasisPoints = 760
)

// CSTs de PIS/COFINS que indicam tributação integral; em itens de NCM
// monofásico eles apontam imposto pago a maior
var taxedCSTs = map[string]bool{"01": true, "02": true}

// tipos de inconsistência detectados
const (
	IssueTaxError      = "Erro de Tributação"
	IssueRegistryRisk  = "Risco de Cadastro"
	categoryNotApplied = "N/A"
)

// Issue é uma inconsistência encontrada em um item de nota
type Issue struct {
	SourceFile  string `json:"arquivo_xml"`
	Product     string `json:"produto"`
	NCM         string `json:"ncm"`
	ItemCents   int64  `json:"valor_item_centavos"`
	Kind        string `json:"tipo_inconsistencia"`
	Category    string `json:"categoria_detectada"`
	PISCents    int64  `json:"pis_a_recuperar_centavos"`
	COFINSCents int64  `json:"cofins_a_recuperar_centavos"`
}

// Result agrega o desfecho de uma análise
type Result struct {
	Issues         []Issue
	TotalCents     int64
	FilesProcessed int
	FilesSkipped   int
}

// TaxErrorCount conta os itens com erro de tributação
func (r *Result) TaxErrorCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Kind == IssueTaxError {
			n++
		}
	}
	return n
}

// RecoverableCents soma o PIS e o COFINS recuperáveis
func (r *Result) RecoverableCents() (pis, cofins int64) {
	for _, issue := range r.Issues {
		pis += issue.PISCents
		cofins += issue.COFINSCents
	}
	return pis, cofins
}

// estruturas mínimas do XML de NF-e, apenas os campos analisados
type nfeProc struct {
	XMLName xml.Name `xml:"nfeProc"`
	NFe     nfeRoot  `xml:"NFe"`
}

type nfeRoot struct {
	InfNFe infNFe `xml:"infNFe"`
}

type infNFe struct {
	Items []detItem `xml:"det"`
}

type detItem struct {
	Prod    prodInfo `xml:"prod"`
	Imposto imposto  `xml:"imposto"`
}

type prodInfo struct {
	NCM   string `xml:"NCM"`
	Name  string `xml:"xProd"`
	Value string `xml:"vProd"`
}

type imposto struct {
	PIS    pisGroup    `xml:"PIS"`
	COFINS cofinsGroup `xml:"COFINS"`
}

type pisGroup struct {
	Aliq *cstHolder `xml:"PISAliq"`
}

type cofinsGroup struct {
	Aliq *cstHolder `xml:"COFINSAliq"`
}

type cstHolder struct {
	CST string `xml:"CST"`
}

// Analyzer percorre XMLs de NF-e aplicando a checagem em duas camadas:
// NCM válido com CST tributado (imposto a recuperar) e descrição que
// casa com uma categoria mas NCM fora dos esperados (risco de cadastro)
type Analyzer struct {
	catalog *Catalog
	logger  *logrus.Logger
}

// NewAnalyzer cria um analisador com o catálogo de categorias informado
func NewAnalyzer(catalog *Catalog, logger *logrus.Logger) *Analyzer {
	return &Analyzer{catalog: catalog, logger: logger}
}

// AnalyzeDir analisa todos os arquivos .xml de um diretório
func (a *Analyzer) AnalyzeDir(dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}

	result := &Result{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".xml") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			a.logger.WithError(err).WithField("file", entry.Name()).Warn("Error reading file, skipping")
			result.FilesSkipped++
			continue
		}

		if err := a.AnalyzeXML(entry.Name(), data, result); err != nil {
			a.logger.WithError(err).WithField("file", entry.Name()).Warn("Invalid NFe XML, skipping")
			result.FilesSkipped++
			continue
		}
		result.FilesProcessed++
	}

	return result, nil
}

// AnalyzeXML analisa uma única NF-e e acumula as inconsistências no resultado
func (a *Analyzer) AnalyzeXML(sourceFile string, data []byte, result *Result) error {
	items, err := parseItems(data)
	if err != nil {
		return err
	}

	for _, item := range items {
		ncm := strings.TrimSpace(item.Prod.NCM)
		valueCents, err := parseCents(item.Prod.Value)
		if err != nil {
			return fmt.Errorf("error parsing item value %q: %w", item.Prod.Value, err)
		}
		result.TotalCents += valueCents

		if issue, found := a.checkItem(sourceFile, ncm, item, valueCents); found {
			result.Issues = append(result.Issues, issue)
		}
	}
	return nil
}

func (a *Analyzer) checkItem(sourceFile, ncm string, item detItem, valueCents int64) (Issue, bool) {
	base := Issue{
		SourceFile: sourceFile,
		Product:    item.Prod.Name,
		NCM:        ncm,
		ItemCents:  valueCents,
	}

	// camada 1: NCM dentro de uma categoria monofásica mas tributado
	// integralmente em PIS/COFINS
	if a.catalog.ValidNCM(ncm) {
		pis := item.Imposto.PIS.Aliq
		cofins := item.Imposto.COFINS.Aliq
		if pis != nil && cofins != nil && (taxedCSTs[pis.CST] || taxedCSTs[cofins.CST]) {
			base.Kind = IssueTaxError
			base.Category = categoryNotApplied
			base.PISCents = applyRate(valueCents, PISRateBasisPoints)
			base.COFINSCents = applyRate(valueCents, COFINSRateBasisPoints)
			return base, true
		}
	}

	// camada 2: descrição casa com uma categoria mas o NCM não está
	// entre os esperados dela
	for _, cat := range a.catalog.Categories {
		if cat.MatchesProduct(item.Prod.Name) && !cat.MatchesNCM(ncm) {
			base.Kind = IssueRegistryRisk
			base.Category = cat.Name
			return base, true
		}
	}

	return Issue{}, false
}

// parseItems aceita tanto o nfeProc completo quanto o elemento NFe isolado
func parseItems(data []byte) ([]detItem, error) {
	var proc nfeProc
	if err := xml.Unmarshal(data, &proc); err == nil && len(proc.NFe.InfNFe.Items) > 0 {
		return proc.NFe.InfNFe.Items, nil
	}

	var root nfeRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return root.InfNFe.Items, nil
}

// parseCents converte um valor decimal do XML ("123.45") para centavos
func parseCents(value string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(f * 100)), nil
}

// applyRate aplica uma alíquota em pontos-base sobre um valor em centavos
func applyRate(cents int64, basisPoints int64) int64 {
	return int64(math.Round(float64(cents*basisPoints) / 10000))
}
