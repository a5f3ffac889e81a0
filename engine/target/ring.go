package target

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
)

var (
	// ErrNoIdleSlot is returned by Acquire when every slot still has a readback in flight.
	ErrNoIdleSlot = errors.New("target: no idle slot")
	// ErrSlotState is returned when a slot transition does not match its current state.
	ErrSlotState = errors.New("target: invalid slot transition")
)

// SlotState is the fence state of one frame-in-flight slot.
type SlotState int

const (
	// SlotIdle means the slot's target may be rendered into.
	SlotIdle SlotState = iota
	// SlotEncoded means a frame has recorded work into the target but no readback is pending yet.
	SlotEncoded
	// SlotMapping means a readback of the target is waiting for its map callback.
	SlotMapping
)

func (s SlotState) String() string {
	switch s {
	case SlotIdle:
		return "idle"
	case SlotEncoded:
		return "encoded"
	case SlotMapping:
		return "mapping"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// Slot is one entry of a Ring.
type Slot struct {
	index  int
	target Offscreen
}

// Index returns the slot's position in the ring.
func (s *Slot) Index() int {
	return s.index
}

// Target returns the slot's offscreen texture.
func (s *Slot) Target() Offscreen {
	return s.target
}

// ring is the implementation of the Ring interface.
type ring struct {
	mu     *sync.Mutex
	slots  []*Slot
	states []SlotState
	next   int
}

// Ring is a fixed set of offscreen targets, one per frame in flight. A slot moves Idle → Encoded → Mapping → Idle;
// a frame only renders into an idle slot, so a target is never overwritten while its readback is pending.
// Methods are safe to call from map callbacks.
type Ring interface {
	// Acquire hands out the next idle slot in round-robin order and marks it Encoded.
	//
	// Returns:
	//   - *Slot: the acquired slot
	//   - error: ErrNoIdleSlot when every slot is busy
	Acquire() (*Slot, error)

	// MarkMapping moves an Encoded slot to Mapping once its readback has been issued.
	//
	// Parameters:
	//   - slot: a slot returned by Acquire
	//
	// Returns:
	//   - error: ErrSlotState if the slot is not Encoded
	MarkMapping(slot *Slot) error

	// Release returns a busy slot to Idle, normally from the readback completion callback.
	//
	// Parameters:
	//   - slot: a slot returned by Acquire
	//
	// Returns:
	//   - error: ErrSlotState if the slot is already idle
	Release(slot *Slot) error

	// State returns the current state of a slot.
	State(slot *Slot) SlotState

	// Slots returns every slot in ring order.
	Slots() []*Slot

	// Idle returns the number of idle slots.
	Idle() int

	// Destroy releases every target's GPU resources.
	Destroy()
}

var _ Ring = &ring{}

// NewRing creates count offscreen targets of the same size and format.
//
// Parameters:
//   - ctx: the device to allocate on
//   - label: a debug label prefix; slot i is labelled "<label> <i>"
//   - count: the number of frames in flight, at least 1
//   - width: the width of each target in texels
//   - height: the height of each target in texels
//   - opts: OffscreenBuilderOption values applied to every target
//
// Returns:
//   - Ring: the created ring with every slot idle
//   - error: an error if count is below 1 or a target cannot be created
func NewRing(ctx gpu.Context, label string, count int, width, height uint32, opts ...OffscreenBuilderOption) (Ring, error) {
	if count < 1 {
		return nil, fmt.Errorf("target: ring %s needs at least one slot, got %d", label, count)
	}
	targets := make([]Offscreen, 0, count)
	for i := 0; i < count; i++ {
		t, err := NewOffscreen(ctx, fmt.Sprintf("%s %d", label, i), width, height, opts...)
		if err != nil {
			for _, created := range targets {
				created.Release()
			}
			return nil, err
		}
		targets = append(targets, t)
	}
	return newRing(targets), nil
}

func newRing(targets []Offscreen) *ring {
	r := &ring{
		mu:     &sync.Mutex{},
		slots:  make([]*Slot, len(targets)),
		states: make([]SlotState, len(targets)),
	}
	for i, t := range targets {
		r.slots[i] = &Slot{index: i, target: t}
	}
	return r
}

func (r *ring) Acquire() (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.slots)
	for i := 0; i < n; i++ {
		idx := (r.next + i) % n
		if r.states[idx] == SlotIdle {
			r.states[idx] = SlotEncoded
			r.next = (idx + 1) % n
			return r.slots[idx], nil
		}
	}
	return nil, ErrNoIdleSlot
}

func (r *ring) MarkMapping(slot *Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.states[slot.index] != SlotEncoded {
		return fmt.Errorf("%w: slot %d is %s, want %s", ErrSlotState, slot.index, r.states[slot.index], SlotEncoded)
	}
	r.states[slot.index] = SlotMapping
	return nil
}

func (r *ring) Release(slot *Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.states[slot.index] == SlotIdle {
		return fmt.Errorf("%w: slot %d is already %s", ErrSlotState, slot.index, SlotIdle)
	}
	r.states[slot.index] = SlotIdle
	return nil
}

func (r *ring) State(slot *Slot) SlotState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[slot.index]
}

func (r *ring) Slots() []*Slot {
	return append([]*Slot(nil), r.slots...)
}

func (r *ring) Idle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	idle := 0
	for _, s := range r.states {
		if s == SlotIdle {
			idle++
		}
	}
	return idle
}

func (r *ring) Destroy() {
	for _, s := range r.slots {
		if s.target != nil {
			s.target.Release()
		}
	}
}
