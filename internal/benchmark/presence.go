package benchmark

import "sync"

// broadcaster fans values out to subscribers. Each subscriber holds at most
// one pending value; a slow reader only ever sees the latest.
type broadcaster[T any] struct {
	mu   sync.Mutex
	subs map[chan T]struct{}
}

func (b *broadcaster[T]) subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[chan T]struct{})
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// drop the stale value and replace it
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Presence reports whether the store holds benchmark data. Subscribers are
// notified on every change.
type Presence struct {
	mu    sync.RWMutex
	value bool
	subs  broadcaster[bool]
}

func (p *Presence) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set stores v and reports whether it changed.
func (p *Presence) Set(v bool) bool {
	p.mu.Lock()
	changed := p.value != v
	p.value = v
	p.mu.Unlock()

	if changed {
		p.subs.publish(v)
	}
	return changed
}

// Subscribe returns a channel of presence changes and a func to stop
// receiving them.
func (p *Presence) Subscribe() (<-chan bool, func()) {
	return p.subs.subscribe()
}
