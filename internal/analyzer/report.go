package analyzer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FormatBRL formata centavos como moeda brasileira (R$ 1.234,56)
func FormatBRL(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var parts []string
	for len(digits) > 3 {
		parts = append([]string{digits[len(digits)-3:]}, parts...)
		digits = digits[:len(digits)-3]
	}
	parts = append([]string{digits}, parts...)

	out := fmt.Sprintf("R$ %s,%02d", strings.Join(parts, "."), frac)
	if negative {
		return "-" + out
	}
	return out
}

// Summary monta o sumário textual do diagnóstico
func Summary(result *Result) string {
	pis, cofins := result.RecoverableCents()
	taxErrors := result.TaxErrorCount()

	var b strings.Builder
	b.WriteString("RELATÓRIO DE ANÁLISE FISCAL PIS/COFINS\n\n")
	fmt.Fprintf(&b, "Arquivos XML de NF-e analisados: %d\n", result.FilesProcessed)
	fmt.Fprintf(&b, "Faturamento total no período: %s\n\n", FormatBRL(result.TotalCents))
	fmt.Fprintf(&b, "Itens com erro de tributação: %d\n", taxErrors)
	fmt.Fprintf(&b, "Itens com risco de cadastro: %d\n\n", len(result.Issues)-taxErrors)
	fmt.Fprintf(&b, "PIS a recuperar: %s\n", FormatBRL(pis))
	fmt.Fprintf(&b, "COFINS a recuperar: %s\n", FormatBRL(cofins))
	fmt.Fprintf(&b, "Total a recuperar: %s\n", FormatBRL(pis+cofins))
	return b.String()
}

// WriteCSV grava o diagnóstico detalhado em CSV e retorna o caminho gerado
func WriteCSV(result *Result, outputDir string) (string, error) {
	if len(result.Issues) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}

	name := fmt.Sprintf("diagnostico_fiscal_%s.csv", time.Now().Format("2006-01-02_150405"))
	path := filepath.Join(outputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"tipo_inconsistencia", "produto", "ncm", "categoria_sugerida",
		"valor_item", "pis_a_recuperar", "cofins_a_recuperar", "arquivo_origem",
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, issue := range result.Issues {
		record := []string{
			issue.Kind,
			issue.Product,
			issue.NCM,
			issue.Category,
			FormatBRL(issue.ItemCents),
			FormatBRL(issue.PISCents),
			FormatBRL(issue.COFINSCents),
			issue.SourceFile,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return path, nil
}
