package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Category descreve uma categoria fiscal: os NCMs esperados e os
// padrões de descrição que identificam produtos dela
type Category struct {
	Name         string   `json:"categoria"`
	ExpectedNCMs []string `json:"ncms_esperados"`
	ProductRegex []string `json:"regex_produtos"`

	compiled []*regexp.Regexp
}

// MatchesProduct verifica se a descrição do produto casa com algum
// padrão da categoria
func (c *Category) MatchesProduct(name string) bool {
	for _, re := range c.compiled {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// MatchesNCM verifica se o NCM pertence aos prefixos esperados da categoria
func (c *Category) MatchesNCM(ncm string) bool {
	for _, prefix := range c.ExpectedNCMs {
		if strings.HasPrefix(ncm, prefix) {
			return true
		}
	}
	return false
}

// Catalog agrega as categorias carregadas e o conjunto de todos os NCMs
// considerados válidos
type Catalog struct {
	Categories []*Category
	validNCMs  []string
}

// ValidNCM verifica se o NCM casa com algum prefixo válido de qualquer categoria
func (cat *Catalog) ValidNCM(ncm string) bool {
	for _, prefix := range cat.validNCMs {
		if strings.HasPrefix(ncm, prefix) {
			return true
		}
	}
	return false
}

// LoadCatalog carrega e pré-compila as categorias fiscais de um arquivo JSON
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading categories file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog monta o catálogo a partir do JSON de categorias
func ParseCatalog(data []byte) (*Catalog, error) {
	var categories []*Category
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("error parsing categories: %w", err)
	}

	catalog := &Catalog{Categories: categories}
	for _, cat := range categories {
		for _, pattern := range cat.ProductRegex {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("error compiling pattern %q for category %s: %w", pattern, cat.Name, err)
			}
			cat.compiled = append(cat.compiled, re)
		}
		catalog.validNCMs = append(catalog.validNCMs, cat.ExpectedNCMs...)
	}

	return catalog, nil
}
