package history

import (
	"fmt"

	"marketfeed/internal/market"
)

// Store owns one Buffer per tracked instrument. The set of instruments is
// fixed at construction; the map itself is never written afterwards.
type Store struct {
	capacity int
	buffers  map[market.Instrument]*Buffer[market.QuotePoint]
}

func NewStore(instruments []market.Instrument, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		capacity: capacity,
		buffers:  make(map[market.Instrument]*Buffer[market.QuotePoint], len(instruments)),
	}
	for _, inst := range instruments {
		s.buffers[inst] = NewBuffer[market.QuotePoint](capacity)
	}
	return s
}

// Append records p for inst.
func (s *Store) Append(inst market.Instrument, p market.QuotePoint) error {
	b, ok := s.buffers[inst]
	if !ok {
		return fmt.Errorf("append history: %w: %q", market.ErrUnknownInstrument, inst)
	}
	b.Push(p)
	return nil
}

// History returns the points recorded for inst, oldest first. Unknown
// instruments yield an empty slice.
func (s *Store) History(inst market.Instrument) []market.QuotePoint {
	b, ok := s.buffers[inst]
	if !ok {
		return []market.QuotePoint{}
	}
	return b.Snapshot()
}

// Len reports how many points are held for inst.
func (s *Store) Len(inst market.Instrument) int {
	if b, ok := s.buffers[inst]; ok {
		return b.Len()
	}
	return 0
}

func (s *Store) Capacity() int { return s.capacity }
