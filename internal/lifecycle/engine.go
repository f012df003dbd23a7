package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/sirupsen/logrus"
)

// DocumentStore é a visão do engine sobre o armazenamento de documentos
type DocumentStore interface {
	Get(ctx context.Context, reference string) (*models.Document, error)
	AppendEvent(ctx context.Context, reference, status, message string, raw []byte, advance bool) error
}

// ArtifactScheduler agenda a busca de artefatos de um documento autorizado.
// A execução é sempre desacoplada: um download lento nunca pode segurar o
// lock da referência nem atrasar a convergência de status.
type ArtifactScheduler interface {
	Schedule(reference string)
}

// DuplicatePolicy decide se dois payloads brutos representam a mesma
// notificação reentregue. A comparação padrão é igualdade byte a byte;
// provedores que carimbam timestamp dentro do payload podem trocar por uma
// comparação normalizada.
type DuplicatePolicy func(last, incoming []byte) bool

// ExactDuplicate é a política padrão de supressão de duplicatas
func ExactDuplicate(last, incoming []byte) bool {
	return len(last) > 0 && bytes.Equal(last, incoming)
}

// Engine é a máquina de estados que governa as transições de um documento.
// Notificações para a mesma referência serializam sob um mutex por
// referência; referências distintas processam em paralelo.
type Engine struct {
	store     DocumentStore
	scheduler ArtifactScheduler
	duplicate DuplicatePolicy
	logger    *logrus.Logger

	// cancelado depois de autorizado é transição válida por padrão
	allowCancelAfterAuthorized bool

	locks   *refLocks
	orphans atomic.Int64
}

// NewEngine cria uma nova instância do engine
func NewEngine(store DocumentStore, scheduler ArtifactScheduler, logger *logrus.Logger) *Engine {
	return &Engine{
		store:                      store,
		scheduler:                  scheduler,
		duplicate:                  ExactDuplicate,
		logger:                     logger,
		allowCancelAfterAuthorized: true,
		locks:                      newRefLocks(),
	}
}

// WithDuplicatePolicy troca a política de supressão de duplicatas
func (e *Engine) WithDuplicatePolicy(policy DuplicatePolicy) *Engine {
	if policy != nil {
		e.duplicate = policy
	}
	return e
}

// WithCancelAfterAuthorized define se cancelamento após autorização é
// aceito como transição de avanço
func (e *Engine) WithCancelAfterAuthorized(allow bool) *Engine {
	e.allowCancelAfterAuthorized = allow
	return e
}

// Orphans retorna o total de notificações órfãs observadas
func (e *Engine) Orphans() int64 {
	return e.orphans.Load()
}

// Apply processa uma notificação de status para uma referência.
//
// Regras, nesta ordem:
//  1. referência desconhecida -> OrphanNotificationError (a notificação já
//     está gravada pelo pipeline; não é reprocessada automaticamente);
//  2. payload idêntico ao último aplicado com o mesmo status -> descartado
//     sem novo evento (reentrega at-least-once);
//  3. status que regrediria a ordem parcial -> evento de auditoria sem
//     mudança de status (entrega fora de ordem);
//  4. caso contrário o evento avança o documento; status autorizado agenda
//     a busca de artefatos de forma desacoplada.
func (e *Engine) Apply(ctx context.Context, reference, incomingStatus string, raw []byte) error {
	if reference == "" {
		return &models.ValidationError{Field: "ref", Message: "missing reference"}
	}
	if incomingStatus == "" {
		return &models.ValidationError{Field: "status", Message: "missing status"}
	}

	unlock := e.locks.Lock(reference)
	defer unlock()

	doc, err := e.store.Get(ctx, reference)
	if err != nil {
		var notFound *models.NotFoundError
		if errors.As(err, &notFound) {
			e.orphans.Add(1)
			e.logger.WithFields(logrus.Fields{
				"reference": reference,
				"status":    incomingStatus,
			}).Warn("Notification for unknown document")
			return &models.OrphanNotificationError{Reference: reference}
		}
		return fmt.Errorf("error loading document %s: %w", reference, err)
	}

	if incomingStatus == doc.Status && e.duplicate(doc.LastResponse, raw) {
		e.logger.WithFields(logrus.Fields{
			"reference": reference,
			"status":    incomingStatus,
		}).Debug("Duplicate notification suppressed")
		return nil
	}

	if e.isRegression(doc.Status, incomingStatus) {
		e.logger.WithFields(logrus.Fields{
			"reference": reference,
			"current":   doc.Status,
			"incoming":  incomingStatus,
		}).Info("Out-of-order notification recorded without status change")
		return e.store.AppendEvent(ctx, reference, incomingStatus, "out-of-order notification ignored", raw, false)
	}

	if err := e.store.AppendEvent(ctx, reference, incomingStatus, "status updated", raw, true); err != nil {
		return fmt.Errorf("error applying transition for %s: %w", reference, err)
	}

	e.logger.WithFields(logrus.Fields{
		"reference": reference,
		"from":      doc.Status,
		"to":        incomingStatus,
	}).Info("Document status updated")

	if IsAuthorized(incomingStatus) && e.scheduler != nil {
		e.scheduler.Schedule(reference)
	}

	return nil
}

// isRegression decide se o status recebido regrediria o progresso do
// documento sob a ordem parcial
func (e *Engine) isRegression(current, incoming string) bool {
	if IsCancelled(incoming) && IsAuthorized(current) {
		return !e.allowCancelAfterAuthorized
	}
	return Rank(incoming) < Rank(current)
}
