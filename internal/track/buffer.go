// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package track

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// DefaultCapacity is the number of samples kept for interpolation.
const DefaultCapacity = 20

// ErrNonMonotonicTimestamp is returned by Append for a sample that is not
// strictly newer than the last retained one.
var ErrNonMonotonicTimestamp = errors.New("non-monotonic timestamp")

// Buffer is a fixed-capacity ring of samples in timestamp order.
// Once full, every append evicts the oldest sample.
//
// Buffer is not safe for concurrent use; the owner serialises access.
type Buffer struct {
	data []Sample
	head int // index of the oldest sample
	size int
}

// NewBuffer creates an empty buffer holding at most capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Buffer{data: make([]Sample, capacity)}
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Accepts reports whether a sample with timestamp ts would be appended.
func (b *Buffer) Accepts(ts int64) bool {
	last, ok := b.Last()
	return !ok || ts > last.TimestampMs
}

// Append adds s as the newest sample. A sample that is not strictly newer than
// the last one is rejected and the buffer is left unchanged.
func (b *Buffer) Append(s Sample) error {
	if last, ok := b.Last(); ok && s.TimestampMs <= last.TimestampMs {
		return fmt.Errorf("%w: %d <= %d", ErrNonMonotonicTimestamp, s.TimestampMs, last.TimestampMs)
	}

	capacity := len(b.data)
	if b.size < capacity {
		b.data[(b.head+b.size)%capacity] = s
		b.size++
		return nil
	}

	// Full: overwrite the oldest and move head forward.
	b.data[b.head] = s
	b.head = (b.head + 1) % capacity
	return nil
}

// at returns the i-th sample counted from the oldest.
func (b *Buffer) at(i int) Sample {
	return b.data[(b.head+i)%len(b.data)]
}

// First returns the oldest sample.
func (b *Buffer) First() (Sample, bool) {
	if b.size == 0 {
		return Sample{}, false
	}
	return b.at(0), true
}

// Last returns the newest sample.
func (b *Buffer) Last() (Sample, bool) {
	if b.size == 0 {
		return Sample{}, false
	}
	return b.at(b.size - 1), true
}

// Samples returns a copy of the retained samples, oldest first.
func (b *Buffer) Samples() []Sample {
	out := make([]Sample, b.size)
	for i := range out {
		out[i] = b.at(i)
	}
	return out
}

// LineString returns the (x, y) path through the retained samples.
func (b *Buffer) LineString() orb.LineString {
	ls := make(orb.LineString, b.size)
	for i := range ls {
		s := b.at(i)
		ls[i] = orb.Point{s.X, s.Y}
	}
	return ls
}

// Reset drops all samples.
func (b *Buffer) Reset() {
	clear(b.data)
	b.head, b.size = 0, 0
}
