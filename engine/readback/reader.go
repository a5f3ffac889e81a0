package readback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrReadbackPending is returned by Resolve while a previous map has not completed.
var ErrReadbackPending = errors.New("readback: map already pending")

// reader is the implementation of the Reader interface.
type reader struct {
	mu      *sync.Mutex
	ctx     gpu.Context
	label   string
	layout  Layout
	buffer  *wgpu.Buffer
	pending bool
}

// Reader owns one MapRead buffer sized for a Layout. Each round-trip is EncodeCopy (or EncodeBufferCopy),
// a submit by the caller, then Resolve; the callback fires from a later gpu.Context.Poll.
type Reader interface {
	// Layout returns the region this reader copies.
	Layout() Layout

	// Buffer returns the mappable GPU buffer.
	Buffer() *wgpu.Buffer

	// EncodeCopy records a copy of the texture's top-left Layout region into the buffer.
	//
	// Parameters:
	//   - enc: an open command encoder, outside any pass
	//   - texture: the source texture; its texel size must match Layout.BytesPerPixel
	//
	// Returns:
	//   - error: ErrReadbackPending while the buffer is mapped, or the encoder's error
	EncodeCopy(enc *wgpu.CommandEncoder, texture *wgpu.Texture) error

	// EncodeBufferCopy records a copy of Layout.Size() bytes from the start of a buffer.
	//
	// Parameters:
	//   - enc: an open command encoder, outside any pass
	//   - src: a buffer created with CopySrc usage
	//
	// Returns:
	//   - error: ErrReadbackPending while the buffer is mapped, or the encoder's error
	EncodeBufferCopy(enc *wgpu.CommandEncoder, src *wgpu.Buffer) error

	// Resolve maps the buffer asynchronously. Call it after the copy has been submitted.
	// done receives a copy of the unpadded bytes; the buffer is already unmapped when it runs, so done may
	// encode and resolve again.
	//
	// Parameters:
	//   - done: the completion callback, invoked exactly once from a Poll
	//
	// Returns:
	//   - error: ErrReadbackPending while a previous map is outstanding
	Resolve(done func([]byte, error)) error

	// Pending reports whether a map is outstanding.
	Pending() bool

	// Release releases the buffer.
	Release()
}

var _ Reader = &reader{}

// NewReader creates a MapRead|CopyDst buffer of layout.BufferSize() bytes.
//
// Parameters:
//   - ctx: the device to allocate on
//   - layout: the region to read back
//   - label: a debug label
//
// Returns:
//   - Reader: the created reader
//   - error: an error if the layout is empty or the buffer cannot be created
func NewReader(ctx gpu.Context, layout Layout, label string) (Reader, error) {
	if layout.Size() == 0 {
		return nil, fmt.Errorf("readback: %s has empty layout %+v", label, layout)
	}
	buf, err := ctx.Device().CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  layout.BufferSize(),
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("readback: failed to create %s buffer: %w", label, err)
	}
	return &reader{
		mu:     &sync.Mutex{},
		ctx:    ctx,
		label:  label,
		layout: layout,
		buffer: buf,
	}, nil
}

func (r *reader) Layout() Layout {
	return r.layout
}

func (r *reader) Buffer() *wgpu.Buffer {
	return r.buffer
}

func (r *reader) EncodeCopy(enc *wgpu.CommandEncoder, texture *wgpu.Texture) error {
	if r.Pending() {
		return ErrReadbackPending
	}
	return enc.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  texture,
			MipLevel: 0,
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: r.buffer,
			Layout: wgpu.TextureDataLayout{
				BytesPerRow:  r.layout.PaddedBytesPerRow(),
				RowsPerImage: r.layout.Height,
			},
		},
		&wgpu.Extent3D{
			Width:              r.layout.Width,
			Height:             r.layout.Height,
			DepthOrArrayLayers: 1,
		},
	)
}

func (r *reader) EncodeBufferCopy(enc *wgpu.CommandEncoder, src *wgpu.Buffer) error {
	if r.Pending() {
		return ErrReadbackPending
	}
	return enc.CopyBufferToBuffer(src, 0, r.buffer, 0, r.layout.Size())
}

func (r *reader) Resolve(done func([]byte, error)) error {
	r.mu.Lock()
	if r.pending {
		r.mu.Unlock()
		return ErrReadbackPending
	}
	r.pending = true
	r.mu.Unlock()

	size := r.layout.BufferSize()
	err := r.buffer.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			r.setPending(false)
			done(nil, fmt.Errorf("readback: map of %s failed with status %v", r.label, status))
			return
		}
		data := r.layout.Unpad(r.buffer.GetMappedRange(0, uint(size)))
		r.buffer.Unmap()
		r.setPending(false)
		done(data, nil)
	})
	if err != nil {
		r.setPending(false)
		return fmt.Errorf("readback: map of %s: %w", r.label, err)
	}
	return nil
}

func (r *reader) setPending(p bool) {
	r.mu.Lock()
	r.pending = p
	r.mu.Unlock()
}

func (r *reader) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

func (r *reader) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.buffer != nil {
		r.buffer.Release()
		r.buffer = nil
	}
}

// Wait resolves a reader and blocks, polling the context, until the callback has fired.
// Only for setup and tools; the render loop uses Resolve.
//
// Parameters:
//   - ctx: the context whose device drives the map callback
//   - r: a reader whose copy has been submitted
//
// Returns:
//   - []byte: the unpadded bytes
//   - error: ErrReadbackPending or the map failure
func Wait(ctx gpu.Context, r Reader) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	if err := r.Resolve(func(data []byte, err error) {
		ch <- result{data: data, err: err}
	}); err != nil {
		return nil, err
	}
	for {
		ctx.Poll(true)
		select {
		case res := <-ch:
			return res.data, res.err
		default:
		}
	}
}
