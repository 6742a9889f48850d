package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedMax struct {
	max int
	err error
}

func (f fixedMax) MaxPosition(context.Context) (int, error) { return f.max, f.err }

func TestAllocator_Next(t *testing.T) {
	tests := []struct {
		name  string
		max   int
		floor int
		want  int
	}{
		{"empty list starts at floor", 0, 100, 100},
		{"continues after max", 150, 100, 151},
		{"max below floor jumps to floor", 3, 100, 100},
		{"non-positive floor treated as one", 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewAllocator(fixedMax{max: tt.max}, tt.floor).Next(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocator_PropagatesStoreError(t *testing.T) {
	_, err := NewAllocator(fixedMax{err: errors.New("db down")}, 100).Next(context.Background())
	assert.Error(t, err)
}
