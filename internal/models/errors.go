package models

import "fmt"

// ConflictError indica uma referência duplicada na criação de um documento
type ConflictError struct {
	Reference string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document already exists: %s", e.Reference)
}

// NotFoundError indica uma operação sobre referência desconhecida
type NotFoundError struct {
	Reference string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.Reference)
}

// OrphanNotificationError indica um webhook para documento nunca criado
// localmente. A notificação já foi gravada; não é reprocessada
// automaticamente porque o documento pode nunca vir a existir.
type OrphanNotificationError struct {
	Reference string
}

func (e *OrphanNotificationError) Error() string {
	return fmt.Sprintf("orphan notification for reference: %s", e.Reference)
}

// ValidationError indica entrada malformada (payload ou justificativa)
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// GatewayError indica falha de rede ou resposta 4xx/5xx da API externa
type GatewayError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway error: %v", e.Err)
	}
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, string(e.Body))
}

// Unwrap expõe o erro de transporte subjacente, quando houver
func (e *GatewayError) Unwrap() error {
	return e.Err
}
