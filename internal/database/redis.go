package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hypernova-labs/fiscal-hub/internal/config"
	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	statusCountsKey = "fiscalhub:status_counts"
	statusCountsTTL = 30 * time.Second
)

// Redis representa a conexão com o Redis
type Redis struct {
	*redis.Client
}

// ConnectRedis estabelece a conexão com o Redis
func ConnectRedis(cfg *config.Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error pinging Redis: %w", err)
	}

	return &Redis{client}, nil
}

// Close fecha a conexão com o Redis
func (r *Redis) Close() error {
	return r.Client.Close()
}

// HealthCheck verifica a saúde do Redis
func (r *Redis) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return r.Ping(ctx).Err()
}

// GetStatusCounts lê do cache a contagem agregada de documentos por status.
// Retorna (nil, nil) em cache miss.
func (r *Redis) GetStatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	data, err := r.Client.Get(ctx, statusCountsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading status counts from cache: %w", err)
	}

	var counts []models.StatusCount
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("error decoding cached status counts: %w", err)
	}

	return counts, nil
}

// SetStatusCounts grava no cache a contagem agregada com TTL curto
func (r *Redis) SetStatusCounts(ctx context.Context, counts []models.StatusCount) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("error encoding status counts: %w", err)
	}

	return r.Client.Set(ctx, statusCountsKey, data, statusCountsTTL).Err()
}

// GetCheckpoint lê um cursor persistido (por exemplo o último NSU do
// sincronizador SEFAZ). Retorna string vazia se não existir.
func (r *Redis) GetCheckpoint(ctx context.Context, key string) (string, error) {
	value, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading checkpoint %s: %w", key, err)
	}
	return value, nil
}

// SetCheckpoint persiste um cursor sem expiração
func (r *Redis) SetCheckpoint(ctx context.Context, key, value string) error {
	return r.Client.Set(ctx, key, value, 0).Err()
}
