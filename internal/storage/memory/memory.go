// Package memory keeps cart snapshots in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/tripcart/internal/domain/cart"
)

// Slots is an in-memory set of named cart slots. Contents are lost on
// restart.
type Slots struct {
	mu   sync.Mutex
	data map[string][]byte
}

// New returns empty Slots.
func New() *Slots {
	return &Slots{data: make(map[string][]byte)}
}

// Slot returns the persister for the named slot.
func (s *Slots) Slot(name string) cart.Persister {
	return &slot{slots: s, name: name}
}

// Len returns the number of slots ever written.
func (s *Slots) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

type slot struct {
	slots *Slots
	name  string
}

func (p *slot) Load(_ context.Context) (cart.Snapshot, error) {
	p.slots.mu.Lock()
	data := p.slots.data[p.name]
	p.slots.mu.Unlock()

	return cart.DecodeSnapshot(data)
}

func (p *slot) Save(_ context.Context, s cart.Snapshot) error {
	data, err := cart.EncodeSnapshot(s)
	if err != nil {
		return err
	}

	p.slots.mu.Lock()
	p.slots.data[p.name] = data
	p.slots.mu.Unlock()
	return nil
}
