package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iliyamo/gym-booking/internal/model"
)

// MemoryBookingRepo keeps bookings in a map guarded by a RWMutex.  When a
// snapshot path is configured every successful write rewrites the whole
// collection to that JSON file, which makes it a drop-in replacement for a
// single-node file database.
type MemoryBookingRepo struct {
	mu       sync.RWMutex
	bookings map[string]model.Booking
	path     string
}

// NewMemoryBookingRepo returns an empty, purely in-memory repository.
func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{bookings: make(map[string]model.Booking)}
}

// NewFileBookingRepo returns a repository persisted to the JSON file at
// path.  The file is loaded when it exists and created on first write.
func NewFileBookingRepo(path string) (*MemoryBookingRepo, error) {
	r := &MemoryBookingRepo{bookings: make(map[string]model.Booking), path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read booking file: %w", err)
	}
	if len(data) == 0 {
		return r, nil
	}
	var list []model.Booking
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode booking file: %w", err)
	}
	for _, b := range list {
		r.bookings[b.ID] = b
	}
	return r, nil
}

func (r *MemoryBookingRepo) List(ctx context.Context) ([]model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (r *MemoryBookingRepo) Get(ctx context.Context, id string) (model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return model.Booking{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return model.Booking{}, ErrNotFound
	}
	return b.Clone(), nil
}

func (r *MemoryBookingRepo) Insert(ctx context.Context, b model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[b.ID]; ok {
		return ErrConflict
	}
	r.bookings[b.ID] = b.Clone()
	if err := r.flushLocked(); err != nil {
		delete(r.bookings, b.ID)
		return err
	}
	return nil
}

func (r *MemoryBookingRepo) Update(ctx context.Context, b model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.bookings[b.ID]
	if !ok {
		return ErrNotFound
	}
	r.bookings[b.ID] = b.Clone()
	if err := r.flushLocked(); err != nil {
		r.bookings[b.ID] = prev
		return err
	}
	return nil
}

// flushLocked writes the collection to a temp file and renames it over the
// snapshot so that a crash never leaves a truncated file behind.  Callers
// must hold the write lock.
func (r *MemoryBookingRepo) flushLocked() error {
	if r.path == "" {
		return nil
	}
	list := make([]model.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		list = append(list, b)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode booking file: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir booking dir: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write booking file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace booking file: %w", err)
	}
	return nil
}
