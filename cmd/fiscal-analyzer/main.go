package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/hypernova-labs/fiscal-hub/internal/analyzer"
	"github.com/sirupsen/logrus"
)

func main() {
	xmlDir := flag.String("dir", "storage/sefaz", "diretório com os XMLs de NF-e a analisar")
	categoriesFile := flag.String("categories", "categorias_fiscais.json", "arquivo JSON de categorias fiscais")
	outputDir := flag.String("out", "reports", "diretório de saída do relatório detalhado")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	catalog, err := analyzer.LoadCatalog(*categoriesFile)
	if err != nil {
		log.Fatalf("Error loading fiscal categories: %v", err)
	}
	logger.Infof("%d fiscal categories loaded from %s", len(catalog.Categories), *categoriesFile)

	result, err := analyzer.NewAnalyzer(catalog, logger).AnalyzeDir(*xmlDir)
	if err != nil {
		log.Fatalf("Error analyzing directory: %v", err)
	}

	if result.FilesProcessed == 0 {
		logger.Warn("No NFe XML files found, nothing to report")
		return
	}

	fmt.Println(analyzer.Summary(result))

	path, err := analyzer.WriteCSV(result, *outputDir)
	if err != nil {
		log.Fatalf("Error writing report: %v", err)
	}
	if path == "" {
		logger.Info("No inconsistencies found, detailed report skipped")
		return
	}
	logger.Infof("Detailed report written to %s", path)
}
