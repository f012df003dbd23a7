package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const categoriesJSON = `[
  {
    "categoria": "Cervejas",
    "ncms_esperados": ["2203"],
    "regex_produtos": ["cerveja", "chopp"]
  },
  {
    "categoria": "Refrigerantes",
    "ncms_esperados": ["2202"],
    "regex_produtos": ["refrigerante", "coca[- ]?cola"]
  }
]`

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := ParseCatalog([]byte(categoriesJSON))
	require.NoError(t, err)
	return catalog
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func nfeXML(ncm, product, value, cstPIS, cstCOFINS string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe>
      <det nItem="1">
        <prod>
          <NCM>` + ncm + `</NCM>
          <xProd>` + product + `</xProd>
          <vProd>` + value + `</vProd>
        </prod>
        <imposto>
          <PIS><PISAliq><CST>` + cstPIS + `</CST></PISAliq></PIS>
          <COFINS><COFINSAliq><CST>` + cstCOFINS + `</CST></COFINSAliq></COFINS>
        </imposto>
      </det>
    </infNFe>
  </NFe>
</nfeProc>`
}

func TestAnalyzeXML_TaxErrorOnMonophasicNCM(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), quietLogger())
	result := &Result{}

	// cerveja é monofásica: CST 01 indica PIS/COFINS pagos indevidamente
	xml := nfeXML("22030000", "CERVEJA PILSEN 600ML", "1000.00", "01", "01")
	require.NoError(t, a.AnalyzeXML("nota1.xml", []byte(xml), result))

	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, IssueTaxError, issue.Kind)
	assert.Equal(t, int64(100000), issue.ItemCents)
	// 1.65% de R$ 1000,00 e 7.6% de R$ 1000,00
	assert.Equal(t, int64(1650), issue.PISCents)
	assert.Equal(t, int64(7600), issue.COFINSCents)
	assert.Equal(t, int64(100000), result.TotalCents)
}

func TestAnalyzeXML_RegistryRiskOnWrongNCM(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), quietLogger())
	result := &Result{}

	// descrição de cerveja mas NCM fora da categoria
	xml := nfeXML("21069090", "CERVEJA ARTESANAL IPA", "50.00", "06", "06")
	require.NoError(t, a.AnalyzeXML("nota2.xml", []byte(xml), result))

	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, IssueRegistryRisk, issue.Kind)
	assert.Equal(t, "Cervejas", issue.Category)
	assert.Zero(t, issue.PISCents)
	assert.Zero(t, issue.COFINSCents)
}

func TestAnalyzeXML_CompliantItem(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), quietLogger())
	result := &Result{}

	// NCM monofásico com CST correto não gera inconsistência
	xml := nfeXML("22030000", "CERVEJA LAGER LATA", "10.00", "04", "04")
	require.NoError(t, a.AnalyzeXML("nota3.xml", []byte(xml), result))

	assert.Empty(t, result.Issues)
	assert.Equal(t, int64(1000), result.TotalCents)
}

func TestAnalyzeXML_CaseInsensitiveRegex(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), quietLogger())
	result := &Result{}

	xml := nfeXML("99999999", "Coca-Cola 2L", "8.50", "06", "06")
	require.NoError(t, a.AnalyzeXML("nota4.xml", []byte(xml), result))

	require.Len(t, result.Issues, 1)
	assert.Equal(t, "Refrigerantes", result.Issues[0].Category)
}

func TestAnalyzeXML_BareNFeElement(t *testing.T) {
	a := NewAnalyzer(testCatalog(t), quietLogger())
	result := &Result{}

	// XML sem o envelope nfeProc
	xml := `<NFe xmlns="http://www.portalfiscal.inf.br/nfe">
  <infNFe>
    <det><prod><NCM>22030000</NCM><xProd>CHOPP ARTESANAL</xProd><vProd>25.00</vProd></prod>
    <imposto><PIS><PISAliq><CST>01</CST></PISAliq></PIS><COFINS><COFINSAliq><CST>01</CST></COFINSAliq></COFINS></imposto></det>
  </infNFe>
</NFe>`
	require.NoError(t, a.AnalyzeXML("nota5.xml", []byte(xml), result))
	require.Len(t, result.Issues, 1)
}

func TestAnalyzeDir_SkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boa.xml"),
		[]byte(nfeXML("22030000", "CERVEJA", "100.00", "01", "01")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ruim.xml"), []byte("nao é xml"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignorado.txt"), []byte("outro"), 0o644))

	a := NewAnalyzer(testCatalog(t), quietLogger())
	result, err := a.AnalyzeDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Len(t, result.Issues, 1)
}

func TestResult_Totals(t *testing.T) {
	result := &Result{Issues: []Issue{
		{Kind: IssueTaxError, PISCents: 100, COFINSCents: 200},
		{Kind: IssueTaxError, PISCents: 50, COFINSCents: 75},
		{Kind: IssueRegistryRisk},
	}}

	assert.Equal(t, 2, result.TaxErrorCount())
	pis, cofins := result.RecoverableCents()
	assert.Equal(t, int64(150), pis)
	assert.Equal(t, int64(275), cofins)
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 0,00", FormatBRL(0))
	assert.Equal(t, "R$ 0,05", FormatBRL(5))
	assert.Equal(t, "R$ 12,34", FormatBRL(1234))
	assert.Equal(t, "R$ 1.234,56", FormatBRL(123456))
	assert.Equal(t, "R$ 1.000.000,00", FormatBRL(100000000))
	assert.Equal(t, "-R$ 12,34", FormatBRL(-1234))
}

func TestWriteCSV(t *testing.T) {
	out := t.TempDir()
	result := &Result{Issues: []Issue{{
		SourceFile: "nota1.xml",
		Product:    "CERVEJA",
		NCM:        "22030000",
		Kind:       IssueTaxError,
		Category:   "N/A",
		ItemCents:  100000,
		PISCents:   1650,
	}}}

	path, err := WriteCSV(result, out)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CERVEJA")
	assert.Contains(t, string(data), "tipo_inconsistencia")
}

func TestWriteCSV_NoIssuesNoFile(t *testing.T) {
	path, err := WriteCSV(&Result{}, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
}
