package service

import (
	"context"
	"fmt"
)

// PositionReader is the part of the registrant store the allocator needs.
type PositionReader interface {
	MaxPosition(ctx context.Context) (int, error)
}

// Allocator hands out stored positions: max(position)+1, never below Floor.
// Callers must hold the "waitlist:position" lock so two signups cannot observe
// the same maximum.
type Allocator struct {
	store PositionReader
	floor int
}

func NewAllocator(store PositionReader, floor int) *Allocator {
	if floor <= 0 {
		floor = 1
	}
	return &Allocator{store: store, floor: floor}
}

func (a *Allocator) Next(ctx context.Context) (int, error) {
	maxPos, err := a.store.MaxPosition(ctx)
	if err != nil {
		return 0, fmt.Errorf("read max position: %w", err)
	}
	if maxPos < a.floor {
		return a.floor, nil
	}
	return maxPos + 1, nil
}
