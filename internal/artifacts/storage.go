package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hypernova-labs/fiscal-hub/internal/models"
)

// LocalStorage grava artefatos em disco sob um diretório por referência:
// {base}/{ref}/{ref}.{ext}. Nenhum outro processo escreve nesse caminho.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage cria um novo storage local
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// Save grava o conteúdo de um artefato e retorna o caminho resultante
func (s *LocalStorage) Save(reference string, kind models.ArtifactKind, content []byte) (string, error) {
	dir := filepath.Join(s.basePath, reference)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating artifact directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s.%s", reference, kind))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("error writing artifact file: %w", err)
	}

	return path, nil
}
