package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DocumentType representa o tipo de documento fiscal
type DocumentType string

const (
	DocumentTypeNFSe DocumentType = "nfse" // nota de serviço
	DocumentTypeNFe  DocumentType = "nfe"  // nota de produto
	DocumentTypeNFCe DocumentType = "nfce" // cupom de varejo
	DocumentTypeCTe  DocumentType = "cte"  // conhecimento de transporte
	DocumentTypeMDFe DocumentType = "mdfe" // manifesto de carga
)

// Valid informa se o tipo de documento é conhecido
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentTypeNFSe, DocumentTypeNFe, DocumentTypeNFCe, DocumentTypeCTe, DocumentTypeMDFe:
		return true
	}
	return false
}

// ArtifactKind representa o formato de um artefato renderizado
type ArtifactKind string

const (
	ArtifactPDF ArtifactKind = "pdf"
	ArtifactXML ArtifactKind = "xml"
)

// Document representa uma submissão de documento fiscal e seu estado local.
// A referência é atribuída pelo chamador, única e imutável.
type Document struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Reference        string          `json:"referencia" db:"reference"`
	ExternalID       *string         `json:"external_id" db:"external_id"`
	DocumentType     DocumentType    `json:"type" db:"document_type"`
	Status           string          `json:"status" db:"status"`
	SubmittedPayload json.RawMessage `json:"payload" db:"submitted_payload"`
	LastResponse     json.RawMessage `json:"response_data" db:"last_response"`
	PDFPath          *string         `json:"pdf_path" db:"pdf_path"`
	XMLPath          *string         `json:"xml_path" db:"xml_path"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// LifecycleEvent representa uma entrada imutável na linha do tempo de um documento
type LifecycleEvent struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	DocumentRef string          `json:"document_ref" db:"document_ref"`
	Status      string          `json:"status" db:"status"`
	Message     string          `json:"message" db:"message"`
	RawData     json.RawMessage `json:"raw_data" db:"raw_data"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// WebhookRecord representa o log bruto de uma notificação recebida,
// gravado antes de qualquer processamento
type WebhookRecord struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Provider   string          `json:"provider" db:"provider"`
	RawPayload json.RawMessage `json:"raw_payload" db:"raw_payload"`
	ReceivedAt time.Time       `json:"received_at" db:"received_at"`
}

// StatusCount representa a contagem agregada de documentos por status
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
