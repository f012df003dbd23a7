package email

import (
	"fmt"

	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// ResendService envia avisos por email usando a API do Resend
type ResendService struct {
	client    *resend.Client
	fromEmail string
	notifyTo  string
	logger    *logrus.Logger
}

// NewResendService cria uma nova instância do serviço
func NewResendService(apiKey, fromEmail, notifyTo string, logger *logrus.Logger) *ResendService {
	return &ResendService{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		notifyTo:  notifyTo,
		logger:    logger,
	}
}

// SendAuthorizationNotice avisa o operador que um documento foi autorizado
// e informa onde os artefatos foram gravados
func (s *ResendService) SendAuthorizationNotice(doc *models.Document, pdfPath, xmlPath string) error {
	if s.notifyTo == "" {
		return nil
	}

	subject := fmt.Sprintf("Documento fiscal autorizado: %s", doc.Reference)

	htmlContent := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Documento Autorizado</title></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2>Documento fiscal autorizado</h2>
    <ul>
        <li><strong>Referência:</strong> %s</li>
        <li><strong>Tipo:</strong> %s</li>
        <li><strong>Status:</strong> %s</li>
        <li><strong>PDF:</strong> %s</li>
        <li><strong>XML:</strong> %s</li>
    </ul>
</body>
</html>`, doc.Reference, doc.DocumentType, doc.Status, orPending(pdfPath), orPending(xmlPath))

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{s.notifyTo},
		Subject: subject,
		Html:    htmlContent,
	}

	sent, err := s.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("error sending authorization notice: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"reference": doc.Reference,
		"email_id":  sent.Id,
		"to":        s.notifyTo,
	}).Info("Authorization notice sent")

	return nil
}

func orPending(path string) string {
	if path == "" {
		return "pendente"
	}
	return path
}
