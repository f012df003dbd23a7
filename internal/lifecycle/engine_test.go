package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hypernova-labs/fiscal-hub/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvent struct {
	status  string
	message string
	advance bool
}

// fakeStore imita o comportamento do repositório: AppendEvent com
// advance atualiza status e last_response do documento
type fakeStore struct {
	mu     sync.Mutex
	docs   map[string]*models.Document
	events map[string][]fakeEvent
}

func newFakeStore(refs ...string) *fakeStore {
	s := &fakeStore{
		docs:   make(map[string]*models.Document),
		events: make(map[string][]fakeEvent),
	}
	for _, ref := range refs {
		s.docs[ref] = &models.Document{
			Reference:    ref,
			DocumentType: models.DocumentTypeNFSe,
			Status:       StatusSubmitted,
		}
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, reference string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[reference]
	if !ok {
		return nil, &models.NotFoundError{Reference: reference}
	}
	clone := *doc
	return &clone, nil
}

func (s *fakeStore) AppendEvent(_ context.Context, reference, status, message string, raw []byte, advance bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[reference]
	if !ok {
		return &models.NotFoundError{Reference: reference}
	}
	s.events[reference] = append(s.events[reference], fakeEvent{status: status, message: message, advance: advance})
	if advance {
		doc.Status = status
		doc.LastResponse = raw
	}
	return nil
}

func (s *fakeStore) status(ref string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[ref].Status
}

func (s *fakeStore) eventCount(ref string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events[ref])
}

type fakeScheduler struct {
	mu   sync.Mutex
	refs []string
}

func (f *fakeScheduler) Schedule(reference string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, reference)
}

func (f *fakeScheduler) scheduled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refs...)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestApply_AdvancesAndSchedulesArtifacts(t *testing.T) {
	store := newFakeStore("ref-1")
	sched := &fakeScheduler{}
	engine := NewEngine(store, sched, testLogger())
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, "ref-1", StatusProcessing, []byte(`{"status":"processing"}`)))
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusAutorizado, []byte(`{"status":"autorizado"}`)))

	assert.Equal(t, StatusAutorizado, store.status("ref-1"))
	assert.Equal(t, []string{"ref-1"}, sched.scheduled())
	assert.Equal(t, 2, store.eventCount("ref-1"))
}

func TestApply_DuplicateDeliverySuppressed(t *testing.T) {
	store := newFakeStore("ref-1")
	engine := NewEngine(store, &fakeScheduler{}, testLogger())
	ctx := context.Background()

	payload := []byte(`{"ref":"ref-1","status":"processing"}`)
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusProcessing, payload))
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusProcessing, payload))
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusProcessing, payload))

	// uma única transição, reentregas não geram novos eventos
	assert.Equal(t, 1, store.eventCount("ref-1"))
	assert.Equal(t, StatusProcessing, store.status("ref-1"))
}

func TestApply_SameStatusDifferentPayloadRecorded(t *testing.T) {
	store := newFakeStore("ref-1")
	engine := NewEngine(store, &fakeScheduler{}, testLogger())
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, "ref-1", StatusProcessing, []byte(`{"seq":1}`)))
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusProcessing, []byte(`{"seq":2}`)))

	assert.Equal(t, 2, store.eventCount("ref-1"))
}

func TestApply_OutOfOrderNeverRegresses(t *testing.T) {
	store := newFakeStore("ref-1")
	engine := NewEngine(store, &fakeScheduler{}, testLogger())
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, "ref-1", StatusAutorizado, []byte(`{"a":1}`)))
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusProcessing, []byte(`{"a":2}`)))

	// o status terminal permanece; a entrega atrasada vira evento de auditoria
	assert.Equal(t, StatusAutorizado, store.status("ref-1"))
	store.mu.Lock()
	last := store.events["ref-1"][len(store.events["ref-1"])-1]
	store.mu.Unlock()
	assert.False(t, last.advance)
	assert.Equal(t, "out-of-order notification ignored", last.message)
}

func TestApply_OrphanNotification(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, &fakeScheduler{}, testLogger())

	err := engine.Apply(context.Background(), "ghost", StatusAutorizado, []byte(`{}`))

	var orphan *models.OrphanNotificationError
	require.ErrorAs(t, err, &orphan)
	assert.Equal(t, "ghost", orphan.Reference)
	assert.Equal(t, int64(1), engine.Orphans())

	// nada foi criado nem alterado
	assert.Empty(t, store.events["ghost"])
}

func TestApply_MissingFields(t *testing.T) {
	engine := NewEngine(newFakeStore(), &fakeScheduler{}, testLogger())

	var invalid *models.ValidationError
	require.ErrorAs(t, engine.Apply(context.Background(), "", StatusProcessing, nil), &invalid)
	require.ErrorAs(t, engine.Apply(context.Background(), "ref-1", "", nil), &invalid)
}

func TestApply_CancelAfterAuthorized_Policy(t *testing.T) {
	ctx := context.Background()

	// política padrão: cancelamento após autorização avança
	store := newFakeStore("ref-1")
	engine := NewEngine(store, &fakeScheduler{}, testLogger())
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusAutorizado, []byte(`{"a":1}`)))
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusCancelado, []byte(`{"a":2}`)))
	assert.Equal(t, StatusCancelado, store.status("ref-1"))

	// política restritiva: cancelamento tardio vira auditoria
	store = newFakeStore("ref-1")
	engine = NewEngine(store, &fakeScheduler{}, testLogger()).WithCancelAfterAuthorized(false)
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusAutorizado, []byte(`{"a":1}`)))
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusCancelado, []byte(`{"a":2}`)))
	assert.Equal(t, StatusAutorizado, store.status("ref-1"))
}

func TestApply_UnknownStatusPassesThrough(t *testing.T) {
	store := newFakeStore("ref-1")
	engine := NewEngine(store, &fakeScheduler{}, testLogger())
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, "ref-1", "em_contingencia", []byte(`{"a":1}`)))
	assert.Equal(t, "em_contingencia", store.status("ref-1"))

	// desconhecido nunca sobrescreve um terminal
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusRejeitado, []byte(`{"a":2}`)))
	require.NoError(t, engine.Apply(ctx, "ref-1", "em_contingencia", []byte(`{"a":3}`)))
	assert.Equal(t, StatusRejeitado, store.status("ref-1"))
}

func TestApply_CustomDuplicatePolicy(t *testing.T) {
	store := newFakeStore("ref-1")
	// política que ignora o payload e trata mesmo status como duplicata
	engine := NewEngine(store, &fakeScheduler{}, testLogger()).
		WithDuplicatePolicy(func(last, incoming []byte) bool { return len(last) > 0 })
	ctx := context.Background()

	require.NoError(t, engine.Apply(ctx, "ref-1", StatusProcessing, []byte(`{"seq":1}`)))
	require.NoError(t, engine.Apply(ctx, "ref-1", StatusProcessing, []byte(`{"seq":2}`)))

	assert.Equal(t, 1, store.eventCount("ref-1"))
}

func TestApply_ConcurrentDeliveriesSerialize(t *testing.T) {
	store := newFakeStore("ref-1")
	engine := NewEngine(store, &fakeScheduler{}, testLogger())
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf(`{"seq":%d}`, i))
			_ = engine.Apply(ctx, "ref-1", StatusProcessing, payload)
		}(i)
	}
	wg.Wait()

	// todas as entregas têm payload distinto: cada uma vira exatamente
	// um evento e o estado final é consistente
	assert.Equal(t, n, store.eventCount("ref-1"))
	assert.Equal(t, StatusProcessing, store.status("ref-1"))
}

func TestApply_ConcurrentDistinctReferences(t *testing.T) {
	refs := []string{"a", "b", "c", "d"}
	store := newFakeStore(refs...)
	engine := NewEngine(store, &fakeScheduler{}, testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, ref := range refs {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			_ = engine.Apply(ctx, ref, StatusProcessing, []byte(`{"x":1}`))
			_ = engine.Apply(ctx, ref, StatusAutorizado, []byte(`{"x":2}`))
		}(ref)
	}
	wg.Wait()

	for _, ref := range refs {
		assert.Equal(t, StatusAutorizado, store.status(ref))
	}
}

func TestApply_AuthorizationFlow(t *testing.T) {
	store := newFakeStore("R1")
	sched := &fakeScheduler{}
	engine := NewEngine(store, sched, testLogger())
	ctx := context.Background()

	payload := []byte(`{"ref":"R1","status":"autorizado","id":"X1"}`)

	// autorização avança e agenda a busca de artefatos
	require.NoError(t, engine.Apply(ctx, "R1", StatusAutorizado, payload))
	assert.Equal(t, StatusAutorizado, store.status("R1"))
	assert.Equal(t, 1, store.eventCount("R1"))
	assert.Equal(t, []string{"R1"}, sched.scheduled())

	// reentrega idêntica é suprimida sem novo evento
	require.NoError(t, engine.Apply(ctx, "R1", StatusAutorizado, payload))
	assert.Equal(t, 1, store.eventCount("R1"))
	assert.Equal(t, []string{"R1"}, sched.scheduled())

	// processing atrasado não regride o documento
	require.NoError(t, engine.Apply(ctx, "R1", StatusProcessing, []byte(`{"ref":"R1","status":"processing"}`)))
	assert.Equal(t, StatusAutorizado, store.status("R1"))
}

func TestApply_ConcurrentIncreasingRanks(t *testing.T) {
	store := newFakeStore("ref-1")
	engine := NewEngine(store, &fakeScheduler{}, testLogger())
	ctx := context.Background()

	statuses := []string{StatusProcessing, StatusAutorizado}
	var wg sync.WaitGroup
	for i, status := range statuses {
		wg.Add(1)
		go func(i int, status string) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf(`{"seq":%d}`, i))
			_ = engine.Apply(ctx, "ref-1", status, payload)
		}(i, status)
	}
	wg.Wait()

	// nenhuma atualização perdida e o estado final é o de maior ranque
	assert.Equal(t, len(statuses), store.eventCount("ref-1"))
	assert.Equal(t, StatusAutorizado, store.status("ref-1"))
}

func TestApply_StoreFailurePropagates(t *testing.T) {
	engine := NewEngine(&failingStore{}, &fakeScheduler{}, testLogger())

	err := engine.Apply(context.Background(), "ref-1", StatusProcessing, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

type failingStore struct{}

func (f *failingStore) Get(context.Context, string) (*models.Document, error) {
	return nil, errors.New("boom")
}

func (f *failingStore) AppendEvent(context.Context, string, string, string, []byte, bool) error {
	return errors.New("boom")
}

func TestRank_PartialOrder(t *testing.T) {
	assert.Less(t, Rank(StatusSubmitted), Rank(StatusProcessing))
	assert.Less(t, Rank(StatusProcessing), Rank(StatusAutorizado))
	assert.Equal(t, Rank(StatusAutorizado), Rank(StatusRejeitado))
	assert.Equal(t, Rank(StatusProcessing), Rank("status_que_nao_existe"))
}
