package workflows

import (
	"context"
	"fmt"

	"github.com/hypernova-labs/fiscal-hub/internal/config"
	"github.com/inngest/inngestgo"
	"github.com/sirupsen/logrus"
)

// InngestClient publica eventos de domínio (documento emitido, autorizado)
// para workflows duráveis externos. O cliente é opcional: sem credenciais o
// serviço opera normalmente, apenas sem publicação.
type InngestClient struct {
	client inngestgo.Client
	logger *logrus.Logger
}

// NewInngestClient cria uma nova instância do cliente
func NewInngestClient(cfg *config.Config, logger *logrus.Logger) (*InngestClient, error) {
	if cfg.Inngest.EventKey == "" {
		return nil, fmt.Errorf("INNGEST_EVENT_KEY not configured")
	}
	if cfg.Inngest.SigningKey == "" {
		return nil, fmt.Errorf("INNGEST_SIGNING_KEY not configured")
	}

	client, err := inngestgo.NewClient(inngestgo.ClientOpts{
		EventKey:   &cfg.Inngest.EventKey,
		SigningKey: &cfg.Inngest.SigningKey,
		AppID:      cfg.Inngest.AppID,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating Inngest client: %w", err)
	}

	return &InngestClient{
		client: client,
		logger: logger,
	}, nil
}

// Send publica um evento de domínio
func (c *InngestClient) Send(ctx context.Context, name string, data map[string]interface{}) error {
	_, err := c.client.Send(ctx, inngestgo.Event{
		Name: name,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("error sending event %s: %w", name, err)
	}

	c.logger.WithField("event", name).Debug("Domain event published")
	return nil
}
