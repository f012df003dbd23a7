package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// URLs padrão da API Focus NFe por ambiente
const (
	FocusBaseURLProducao    = "https://api.focusnfe.com.br"
	FocusBaseURLHomologacao = "https://homologacao.focusnfe.com.br"
)

// Config representa a configuração do serviço
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Focus    FocusConfig
	Storage  StorageConfig
	Sefaz    SefazConfig
	Email    EmailConfig
	Inngest  InngestConfig
	Logging  LoggingConfig
	Webhook  WebhookConfig
}

// ServerConfig representa a configuração do servidor HTTP
type ServerConfig struct {
	Port    string
	Host    string
	Env     string
	BaseURL string
}

// DatabaseConfig representa a configuração do banco de dados
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig representa a configuração do Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// FocusConfig representa a configuração do cliente Focus NFe
type FocusConfig struct {
	Token       string
	BaseURL     string
	Environment string
	Timeout     time.Duration
}

// StorageConfig representa a configuração de armazenamento de artefatos
type StorageConfig struct {
	Path            string
	MirrorEndpoint  string
	MirrorRegion    string
	MirrorBucket    string
	AccessKeyID     string
	SecretAccessKey string
}

// SefazConfig representa a configuração do sincronizador SEFAZ
type SefazConfig struct {
	CNPJ      string
	CertFile  string
	KeyFile   string
	OutputDir string
	StateFile string
	Timeout   time.Duration
	Interval  time.Duration
}

// EmailConfig representa a configuração de notificações por email
type EmailConfig struct {
	ResendAPIKey string
	From         string
	NotifyTo     string
}

// InngestConfig representa a configuração do Inngest
type InngestConfig struct {
	EventKey   string
	SigningKey string
	AppID      string
	Dev        bool
}

// LoggingConfig representa a configuração de logging
type LoggingConfig struct {
	Level  string
	Format string
}

// WebhookConfig representa a configuração do pipeline de webhooks
type WebhookConfig struct {
	Workers   int
	QueueSize int

	// AllowCancelAfterAuthorized controla se um cancelamento notificado
	// depois da autorização é aceito como transição válida
	AllowCancelAfterAuthorized bool
}

// Load carrega a configuração a partir de variáveis de ambiente
func Load() (*Config, error) {
	// Carregar arquivo .env se existir
	if err := godotenv.Load(); err != nil {
		// Não é crítico se o arquivo .env não existir
	}

	config := &Config{
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8080"),
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Env:     getEnv("SERVER_ENV", "development"),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PGHOST", "localhost"),
			Port:     getEnv("PGPORT", "5432"),
			User:     getEnv("PGUSER", "postgres"),
			Password: getEnv("PGPASSWORD", "postgres"),
			Name:     getEnv("PGDATABASE", "fiscalhub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Focus: FocusConfig{
			Token:       getEnv("FOCUS_NFE_TOKEN", ""),
			BaseURL:     getEnv("FOCUS_NFE_BASE_URL", ""),
			Environment: getEnv("FOCUS_NFE_ENV", "homologacao"),
			Timeout:     getEnvAsDuration("FOCUS_NFE_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Path:            getEnv("STORAGE_PATH", "storage/invoices"),
			MirrorEndpoint:  getEnv("STORAGE_MIRROR_ENDPOINT", ""),
			MirrorRegion:    getEnv("STORAGE_MIRROR_REGION", "us-east-1"),
			MirrorBucket:    getEnv("STORAGE_MIRROR_BUCKET", "invoice-files"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
		},
		Sefaz: SefazConfig{
			CNPJ:      getEnv("SEFAZ_CNPJ", ""),
			CertFile:  getEnv("SEFAZ_CERT_FILE", ""),
			KeyFile:   getEnv("SEFAZ_KEY_FILE", ""),
			OutputDir: getEnv("SEFAZ_OUTPUT_DIR", "storage/sefaz"),
			StateFile: getEnv("SEFAZ_STATE_FILE", "storage/sefaz/state.json"),
			Timeout:   getEnvAsDuration("SEFAZ_TIMEOUT", 60*time.Second),
			Interval:  getEnvAsDuration("SEFAZ_SYNC_INTERVAL", 15*time.Minute),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			From:         getEnv("EMAIL_FROM", "onboarding@resend.dev"),
			NotifyTo:     getEnv("EMAIL_NOTIFY_TO", ""),
		},
		Inngest: InngestConfig{
			EventKey:   getEnv("INNGEST_EVENT_KEY", ""),
			SigningKey: getEnv("INNGEST_SIGNING_KEY", ""),
			AppID:      getEnv("INNGEST_APP_ID", "fiscal-hub"),
			Dev:        getEnvAsBool("INNGEST_DEV", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			Workers:   getEnvAsInt("WEBHOOK_WORKERS", 4),
			QueueSize: getEnvAsInt("WEBHOOK_QUEUE_SIZE", 256),

			AllowCancelAfterAuthorized: getEnvAsBool("WEBHOOK_ALLOW_CANCEL_AFTER_AUTHORIZED", true),
		},
	}

	return config, nil
}

// getEnv obtém uma variável de ambiente ou retorna um valor padrão
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt obtém uma variável de ambiente como inteiro
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool obtém uma variável de ambiente como booleano
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration obtém uma variável de ambiente como duração
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// IsDevelopment retorna true se o ambiente for de desenvolvimento
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction retorna true se o ambiente for de produção
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetDSN retorna a string de conexão com o banco de dados
func (c *Config) GetDSN() string {
	return "host=" + c.Database.Host +
		" port=" + c.Database.Port +
		" user=" + c.Database.User +
		" password=" + c.Database.Password +
		" dbname=" + c.Database.Name +
		" sslmode=" + c.Database.SSLMode
}

// GetRedisAddr retorna o endereço do Redis
func (c *Config) GetRedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

// GetFocusBaseURL resolve a URL base da Focus conforme o ambiente
func (c *Config) GetFocusBaseURL() string {
	if c.Focus.BaseURL != "" {
		return c.Focus.BaseURL
	}
	if c.Focus.Environment == "producao" {
		return FocusBaseURLProducao
	}
	return FocusBaseURLHomologacao
}
