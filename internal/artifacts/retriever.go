package artifacts

import (
	"context"
	"fmt"
	"time"

	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/sirupsen/logrus"
)

const retrieveTimeout = 2 * time.Minute

var artifactKinds = []models.ArtifactKind{models.ArtifactPDF, models.ArtifactXML}

// Downloader baixa artefatos renderizados da API externa
type Downloader interface {
	DownloadDocument(ctx context.Context, docType models.DocumentType, reference string, kind models.ArtifactKind) (bool, []byte, error)
}

// ArtifactStore é a visão do retriever sobre o armazenamento de documentos
type ArtifactStore interface {
	Get(ctx context.Context, reference string) (*models.Document, error)
	SetArtifactPath(ctx context.Context, reference string, kind models.ArtifactKind, path string) error
}

// Notifier envia o aviso de autorização com os artefatos obtidos (opcional)
type Notifier interface {
	SendAuthorizationNotice(doc *models.Document, pdfPath, xmlPath string) error
}

// Retriever busca e persiste os artefatos (PDF e XML) de documentos
// autorizados. Cada formato é independente e best-effort: a falha de um
// download não bloqueia o outro e uma nova tentativa posterior pode
// completar o que faltou.
type Retriever struct {
	client   Downloader
	store    ArtifactStore
	storage  *LocalStorage
	mirror   *Mirror
	notifier Notifier
	logger   *logrus.Logger
}

// NewRetriever cria um novo retriever
func NewRetriever(client Downloader, store ArtifactStore, storage *LocalStorage, logger *logrus.Logger) *Retriever {
	return &Retriever{
		client:  client,
		store:   store,
		storage: storage,
		logger:  logger,
	}
}

// WithMirror habilita a réplica em storage S3
func (r *Retriever) WithMirror(mirror *Mirror) *Retriever {
	r.mirror = mirror
	return r
}

// WithNotifier habilita o aviso por email após a recuperação
func (r *Retriever) WithNotifier(notifier Notifier) *Retriever {
	r.notifier = notifier
	return r
}

// Schedule dispara a recuperação em segundo plano, desacoplada da transição
// de status que a originou
func (r *Retriever) Schedule(reference string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), retrieveTimeout)
		defer cancel()

		if err := r.Retrieve(ctx, reference); err != nil {
			r.logger.WithField("reference", reference).WithError(err).Error("Artifact retrieval failed")
		}
	}()
}

// Retrieve baixa PDF e XML do documento e registra os caminhos resultantes.
// Erros por formato são registrados e não interrompem o outro formato.
func (r *Retriever) Retrieve(ctx context.Context, reference string) error {
	doc, err := r.store.Get(ctx, reference)
	if err != nil {
		return fmt.Errorf("error loading document for retrieval: %w", err)
	}

	var pdfPath, xmlPath string
	retrieved := 0

	for _, kind := range artifactKinds {
		path, err := r.retrieveOne(ctx, doc, kind)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"reference": reference,
				"kind":      kind,
			}).WithError(err).Warn("Artifact download failed, retryable")
			continue
		}
		if path == "" {
			continue
		}

		retrieved++
		switch kind {
		case models.ArtifactPDF:
			pdfPath = path
		case models.ArtifactXML:
			xmlPath = path
		}
	}

	if retrieved > 0 && r.notifier != nil {
		if err := r.notifier.SendAuthorizationNotice(doc, pdfPath, xmlPath); err != nil {
			r.logger.WithField("reference", reference).WithError(err).Warn("Error sending authorization notice")
		}
	}

	return nil
}

// retrieveOne baixa um único formato; retorna caminho vazio quando a Focus
// ainda não tem o artefato disponível
func (r *Retriever) retrieveOne(ctx context.Context, doc *models.Document, kind models.ArtifactKind) (string, error) {
	found, data, err := r.client.DownloadDocument(ctx, doc.DocumentType, doc.Reference, kind)
	if err != nil {
		return "", err
	}
	if !found {
		r.logger.WithFields(logrus.Fields{
			"reference": doc.Reference,
			"kind":      kind,
		}).Debug("Artifact not yet available")
		return "", nil
	}

	path, err := r.storage.Save(doc.Reference, kind, data)
	if err != nil {
		return "", err
	}

	if err := r.store.SetArtifactPath(ctx, doc.Reference, kind, path); err != nil {
		return "", err
	}

	if r.mirror != nil {
		key := fmt.Sprintf("%s/%s.%s", doc.Reference, doc.Reference, kind)
		contentType := "application/pdf"
		if kind == models.ArtifactXML {
			contentType = "application/xml"
		}
		if err := r.mirror.Upload(ctx, key, data, contentType); err != nil {
			r.logger.WithField("reference", doc.Reference).WithError(err).Warn("Error mirroring artifact")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"reference": doc.Reference,
		"kind":      kind,
		"path":      path,
		"size":      len(data),
	}).Info("Artifact retrieved")

	return path, nil
}
