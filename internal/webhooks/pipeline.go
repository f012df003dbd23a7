package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hypernova-labs/fiscal-hub/internal/lifecycle"
	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/sirupsen/logrus"
)

// ProviderFocusNFe é o provedor padrão das notificações
const ProviderFocusNFe = "focusnfe"

const processTimeout = 60 * time.Second

// WebhookStore grava o log durável de notificações
type WebhookStore interface {
	Create(ctx context.Context, provider string, payload []byte) (*models.WebhookRecord, error)
}

// Processor aplica uma notificação de status ao documento correspondente
type Processor interface {
	Apply(ctx context.Context, reference, status string, raw []byte) error
}

// EventSink publica eventos de domínio para sistemas externos (opcional)
type EventSink interface {
	Send(ctx context.Context, name string, data map[string]interface{}) error
}

// notification é o subconjunto mínimo exigido do payload; os demais campos
// são preservados verbatim no raw_data
type notification struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

type job struct {
	provider string
	payload  []byte
}

// Pipeline recebe notificações, grava o WebhookRecord de forma síncrona e
// despacha o processamento para um pool de workers. O reconhecimento ao
// provedor depende apenas da gravação durável; todo erro posterior é
// refletido no estado do documento, nunca devolvido pela conexão.
type Pipeline struct {
	store     WebhookStore
	processor Processor
	events    EventSink
	logger    *logrus.Logger

	queue   chan job
	workers int
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPipeline cria um novo pipeline de ingestão
func NewPipeline(store WebhookStore, processor Processor, logger *logrus.Logger, workers, queueSize int) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	return &Pipeline{
		store:     store,
		processor: processor,
		logger:    logger,
		queue:     make(chan job, queueSize),
		workers:   workers,
	}
}

// WithEventSink habilita a publicação de eventos de domínio
func (p *Pipeline) WithEventSink(sink EventSink) *Pipeline {
	p.events = sink
	return p
}

// Start inicia os workers de processamento
func (p *Pipeline) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.queue {
				p.process(j)
			}
		}()
	}
	p.logger.WithField("workers", p.workers).Info("Webhook pipeline started")
}

// Stop fecha a fila e drena os jobs pendentes
func (p *Pipeline) Stop() {
	p.once.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

// Ingest grava a notificação e enfileira o processamento. A gravação é o
// único passo no caminho crítico da resposta: se ela falhar, a requisição
// inteira falha e o provedor fica encarregado de reentregar.
func (p *Pipeline) Ingest(ctx context.Context, provider string, payload []byte) error {
	if _, err := p.store.Create(ctx, provider, payload); err != nil {
		return fmt.Errorf("error persisting webhook record: %w", err)
	}

	j := job{provider: provider, payload: payload}

	select {
	case p.queue <- j:
	default:
		// fila cheia: processa fora do pool para não bloquear a resposta
		p.logger.Warn("Webhook queue full, processing out of pool")
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.process(j)
		}()
	}

	return nil
}

// process aplica uma notificação já durável
func (p *Pipeline) process(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	var n notification
	if err := json.Unmarshal(j.payload, &n); err != nil {
		p.logger.WithError(err).Error("Webhook payload is not a JSON object, kept in log only")
		return
	}

	err := p.processor.Apply(ctx, n.Ref, n.Status, j.payload)
	if err != nil {
		var orphan *models.OrphanNotificationError
		var invalid *models.ValidationError
		switch {
		case errors.As(err, &orphan):
			// já contabilizada pelo engine; o registro durável permite
			// reprocessamento manual se o documento vier a existir
		case errors.As(err, &invalid):
			p.logger.WithError(err).Warn("Webhook payload missing required fields, kept in log only")
		default:
			p.logger.WithFields(logrus.Fields{
				"reference": n.Ref,
				"status":    n.Status,
			}).WithError(err).Error("Error processing webhook notification")
		}
		return
	}

	if p.events != nil && lifecycle.IsAuthorized(n.Status) {
		data := map[string]interface{}{"reference": n.Ref, "status": n.Status}
		if err := p.events.Send(ctx, "fiscal/document.authorized", data); err != nil {
			p.logger.WithError(err).Warn("Error publishing authorized event")
		}
	}
}
