// Package session は外部認証基盤が発行したセッション（アクセストークン）を保持し、
// セッションの切り替わりを購読者に通知する。
package session

import (
	"context"
	"sync"
)

// Session は認証済みセッションを表す。
type Session struct {
	AccessToken string
}

// Provider は現在のセッションを読み取り専用で提供する。
type Provider interface {
	// Current は現在のセッションを返す。未ログインの場合はnil。
	Current() *Session
}

// Store はスレッドセーフなセッション保持と変更通知を提供する。
// 同じトークンの再設定は変更とみなさない。
type Store struct {
	mu      sync.Mutex
	current *Session
	nextID  int
	subs    map[int]*subscriber
}

var _ Provider = (*Store)(nil)

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{subs: make(map[int]*subscriber)}
}

// Current は現在のセッションのコピーを返す。未ログインの場合はnil。
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.current)
}

// Set はセッションを設定する。アクセストークンが空の場合はClearと同じ。
// 現在と同じトークンの場合は何もしない。
func (s *Store) Set(sess *Session) {
	if sess == nil || sess.AccessToken == "" {
		s.Clear()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.AccessToken == sess.AccessToken {
		return
	}
	s.current = clone(sess)
	s.broadcastLocked()
}

// Clear はセッションを破棄する（ログアウト）。
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current = nil
	s.broadcastLocked()
}

// Subscribe はセッション変更の通知チャネルを返す。
// 購読時点でセッションが存在する場合はそれが最初に届く。ログアウトはnilとして届く。
// 通知は取りこぼしなく順序どおりに配送され、ctxの終了でチャネルが閉じられる。
func (s *Store) Subscribe(ctx context.Context) <-chan *Session {
	sub := newSubscriber()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	if s.current != nil {
		sub.push(clone(s.current))
	}
	s.mu.Unlock()

	go func() {
		sub.run(ctx)
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}()

	return sub.out
}

func (s *Store) broadcastLocked() {
	for _, sub := range s.subs {
		sub.push(clone(s.current))
	}
}

func clone(sess *Session) *Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}

// subscriber は購読者ごとの無制限キューを保持し、受信側の速度に合わせて配送する。
type subscriber struct {
	mu      sync.Mutex
	pending []*Session
	wake    chan struct{}
	out     chan *Session
}

func newSubscriber() *subscriber {
	return &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan *Session),
	}
}

func (sub *subscriber) push(sess *Session) {
	sub.mu.Lock()
	sub.pending = append(sub.pending, sess)
	sub.mu.Unlock()

	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *subscriber) run(ctx context.Context) {
	defer close(sub.out)
	for {
		sub.mu.Lock()
		if len(sub.pending) == 0 {
			sub.mu.Unlock()
			select {
			case <-sub.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		next := sub.pending[0]
		sub.pending = sub.pending[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- next:
		case <-ctx.Done():
			return
		}
	}
}
