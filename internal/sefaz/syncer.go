package sefaz

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hypernova-labs/fiscal-hub/internal/database"
	"github.com/sirupsen/logrus"
)

const checkpointKey = "fiscalhub:sefaz:last_nsu"

// Checkpoint persiste o cursor NSU entre execuções do sincronizador
type Checkpoint interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, nsu string) error
}

// RedisCheckpoint guarda o cursor no Redis
type RedisCheckpoint struct {
	redis *database.Redis
}

// NewRedisCheckpoint cria um checkpoint baseado em Redis
func NewRedisCheckpoint(redis *database.Redis) *RedisCheckpoint {
	return &RedisCheckpoint{redis: redis}
}

func (c *RedisCheckpoint) Load(ctx context.Context) (string, error) {
	return c.redis.GetCheckpoint(ctx, checkpointKey)
}

func (c *RedisCheckpoint) Save(ctx context.Context, nsu string) error {
	return c.redis.SetCheckpoint(ctx, checkpointKey, nsu)
}

// FileCheckpoint guarda o cursor em um arquivo JSON, para execuções sem
// Redis disponível
type FileCheckpoint struct {
	path string
}

// NewFileCheckpoint cria um checkpoint baseado em arquivo
func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

type checkpointState struct {
	LastNSU string `json:"ultimo_nsu"`
}

func (c *FileCheckpoint) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("error reading checkpoint file: %w", err)
	}

	var state checkpointState
	if err := json.Unmarshal(data, &state); err != nil {
		return "", nil
	}
	return state.LastNSU, nil
}

func (c *FileCheckpoint) Save(_ context.Context, nsu string) error {
	data, err := json.Marshal(checkpointState{LastNSU: nsu})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("error creating checkpoint directory: %w", err)
	}
	return os.WriteFile(c.path, data, 0o644)
}

// Distributor abstrai a consulta de distribuição para permitir testes
type Distributor interface {
	FetchDistribution(ctx context.Context, lastNSU string) (*DistributionResult, error)
}

// Syncer percorre a distribuição de DF-e a partir do último NSU
// conhecido e arquiva cada documento em disco
type Syncer struct {
	client     Distributor
	checkpoint Checkpoint
	outputDir  string
	interval   time.Duration
	logger     *logrus.Logger
}

// NewSyncer cria um novo sincronizador
func NewSyncer(client Distributor, checkpoint Checkpoint, outputDir string, interval time.Duration, logger *logrus.Logger) *Syncer {
	return &Syncer{
		client:     client,
		checkpoint: checkpoint,
		outputDir:  outputDir,
		interval:   interval,
		logger:     logger,
	}
}

// Run executa ciclos de sincronização até o contexto ser cancelado
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.SyncOnce(ctx); err != nil {
			s.logger.WithError(err).Error("Error during distribution sync cycle")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SyncOnce consome a distribuição até o NSU máximo, persistindo o
// cursor a cada lote para que uma interrupção retome de onde parou
func (s *Syncer) SyncOnce(ctx context.Context) error {
	lastNSU, err := s.checkpoint.Load(ctx)
	if err != nil {
		return fmt.Errorf("error loading checkpoint: %w", err)
	}

	for {
		result, err := s.client.FetchDistribution(ctx, lastNSU)
		if err != nil {
			return err
		}

		if result.Stat == StatNoDocuments {
			s.logger.WithField("last_nsu", lastNSU).Info("No new documents")
			return nil
		}
		if result.Stat != StatDocsLocated {
			return fmt.Errorf("distribution service returned [%s] %s", result.Stat, result.Reason)
		}

		for _, doc := range result.Documents {
			if err := s.archive(doc); err != nil {
				return err
			}
		}

		lastNSU = result.LastNSU
		if err := s.checkpoint.Save(ctx, lastNSU); err != nil {
			return fmt.Errorf("error saving checkpoint: %w", err)
		}

		s.logger.WithFields(logrus.Fields{
			"archived": len(result.Documents),
			"last_nsu": lastNSU,
		}).Info("Distribution batch archived")

		if !result.HasMore() {
			return nil
		}
	}
}

// archive grava o XML descompactado em {output}/{nsu}-{schema}.xml
func (s *Syncer) archive(doc Document) error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	name := filepath.Join(s.outputDir, fmt.Sprintf("%s-%s.xml", doc.NSU, doc.Schema))
	if err := os.WriteFile(name, doc.XML, 0o644); err != nil {
		return fmt.Errorf("error writing document %s: %w", doc.NSU, err)
	}
	return nil
}
