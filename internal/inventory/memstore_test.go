package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

// memStore mirrors the conditional UPDATE semantics of SQLStore under a
// mutex, the in-process equivalent of InnoDB's row lock.
type memStore struct {
	mu    sync.Mutex
	slots map[uint64]*model.TimeSlot
}

func newMemStore(slots ...model.TimeSlot) *memStore {
	m := &memStore{slots: make(map[uint64]*model.TimeSlot)}
	for i := range slots {
		s := slots[i]
		m.slots[s.ID] = &s
	}
	return m
}

func datedSlot(id uint64, capacity, current, buffer int) model.TimeSlot {
	d := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	return model.TimeSlot{
		ID: id, SlotDate: &d, StartTime: "10:00:00", EndTime: "11:00:00",
		Capacity: capacity, CurrentBookings: current, BufferCapacity: buffer, IsActive: true,
	}
}

func (m *memStore) Get(_ context.Context, id uint64) (model.TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return model.TimeSlot{}, ErrSlotNotFound
	}
	return *s, nil
}

func (m *memStore) IncrementIfAvailable(_ context.Context, id uint64, n int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || !s.Bookable() || s.CurrentBookings+n > s.Capacity-s.BufferCapacity {
		return false, nil
	}
	s.CurrentBookings += n
	return true, nil
}

func (m *memStore) Decrement(_ context.Context, id uint64, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[id]; ok {
		s.CurrentBookings -= n
		if s.CurrentBookings < 0 {
			s.CurrentBookings = 0
		}
	}
	return nil
}

func (m *memStore) ResizeIfFits(_ context.Context, id uint64, capacity, buffer int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok || s.CurrentBookings > capacity-buffer {
		return false, nil
	}
	s.Capacity, s.BufferCapacity = capacity, buffer
	return true, nil
}

func (m *memStore) current(id uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id].CurrentBookings
}
