package lifecycle

import "sync"

// refLocks mantém um mutex por referência com contagem de uso, liberando a
// entrada quando o último detentor solta o lock. Notificações de referências
// distintas não disputam entre si.
type refLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newRefLocks() *refLocks {
	return &refLocks{locks: make(map[string]*refLock)}
}

// Lock adquire o mutex da referência e retorna a função que o libera
func (l *refLocks) Lock(reference string) func() {
	l.mu.Lock()
	entry, ok := l.locks[reference]
	if !ok {
		entry = &refLock{}
		l.locks[reference] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, reference)
		}
		l.mu.Unlock()
	}
}
