// Package lock は本ごとの排他（貸出の存在確認と登録の間を直列化する）を提供する。
package lock

import (
	"context"
	"sync"
)

// Locker は key 単位の排他ロック。unlock は一度だけ呼ぶこと。
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func BookKey(bookID string) string { return "library:lock:book:" + bookID }

type entry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex はプロセス内の key 単位ロック。使われなくなった key は破棄する。
type KeyedMutex struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{keys: make(map[string]*entry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

// size はテスト用。
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
