package target

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOffscreen struct {
	released bool
}

func (f *fakeOffscreen) Label() string { return "fake" }
func (f *fakeOffscreen) Texture() *wgpu.Texture { return nil }
func (f *fakeOffscreen) View() *wgpu.TextureView { return nil }
func (f *fakeOffscreen) Size() (uint32, uint32) { return 256, 1 }
func (f *fakeOffscreen) Format() wgpu.TextureFormat { return wgpu.TextureFormatRGBA16Float }
func (f *fakeOffscreen) Release() { f.released = true }

func newFakeRing(n int) (*ring, []*fakeOffscreen) {
	fakes := make([]*fakeOffscreen, n)
	targets := make([]Offscreen, n)
	for i := range fakes {
		fakes[i] = &fakeOffscreen{}
		targets[i] = fakes[i]
	}
	return newRing(targets), fakes
}

func TestRingAcquireRoundRobin(t *testing.T) {
	r, _ := newFakeRing(2)
	assert.Equal(t, 2, r.Idle())

	a, err := r.Acquire()
	require.NoError(t, err)
	b, err := r.Acquire()
	require.NoError(t, err)
	assert.NotEqual(t, a.Index(), b.Index())
	assert.Equal(t, 0, r.Idle())

	_, err = r.Acquire()
	assert.ErrorIs(t, err, ErrNoIdleSlot)

	require.NoError(t, r.Release(a))
	c, err := r.Acquire()
	require.NoError(t, err)
	assert.Equal(t, a.Index(), c.Index())
}

func TestRingTransitions(t *testing.T) {
	r, _ := newFakeRing(1)

	s, err := r.Acquire()
	require.NoError(t, err)
	assert.Equal(t, SlotEncoded, r.State(s))

	require.NoError(t, r.MarkMapping(s))
	assert.Equal(t, SlotMapping, r.State(s))
	assert.ErrorIs(t, r.MarkMapping(s), ErrSlotState)

	_, err = r.Acquire()
	assert.ErrorIs(t, err, ErrNoIdleSlot)

	require.NoError(t, r.Release(s))
	assert.Equal(t, SlotIdle, r.State(s))
	assert.ErrorIs(t, r.Release(s), ErrSlotState)
	assert.ErrorIs(t, r.MarkMapping(s), ErrSlotState)
}

func TestRingNeverHandsOutBusySlot(t *testing.T) {
	r, _ := newFakeRing(3)

	var (
		mu   sync.Mutex
		held = map[int]bool{}
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s, err := r.Acquire()
				if err != nil {
					continue
				}
				mu.Lock()
				assert.False(t, held[s.Index()], "slot %d handed out twice", s.Index())
				held[s.Index()] = true
				mu.Unlock()

				mu.Lock()
				held[s.Index()] = false
				mu.Unlock()
				assert.NoError(t, r.Release(s))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, r.Idle())
}

func TestRingDestroyReleasesTargets(t *testing.T) {
	r, fakes := newFakeRing(2)
	assert.Len(t, r.Slots(), 2)

	r.Destroy()
	for _, f := range fakes {
		assert.True(t, f.released)
	}
}

func TestSlotStateString(t *testing.T) {
	assert.Equal(t, "idle", SlotIdle.String())
	assert.Equal(t, "encoded", SlotEncoded.String())
	assert.Equal(t, "mapping", SlotMapping.String())
	assert.Equal(t, "SlotState(9)", SlotState(9).String())
}

func TestNewRingOnDevice(t *testing.T) {
	ctx := gputest.NewHeadless(t)

	_, err := NewRing(ctx, "bad", 0, 256, 1)
	assert.Error(t, err)

	r, err := NewRing(ctx, "histogram", 2, 256, 1)
	require.NoError(t, err)
	defer r.Destroy()

	for i, s := range r.Slots() {
		w, h := s.Target().Size()
		assert.Equal(t, uint32(256), w)
		assert.Equal(t, uint32(1), h)
		assert.Equal(t, wgpu.TextureFormatRGBA16Float, s.Target().Format())
		assert.NotNil(t, s.Target().View())
		assert.Equal(t, i, s.Index())
	}

	_, err = NewOffscreen(ctx, "empty", 0, 1)
	assert.Error(t, err)
}
