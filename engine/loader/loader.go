package loader

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PlaceholderName is the cache key of the checker texture substituted for assets that fail to decode.
const PlaceholderName = "placeholder"

// Texture is a sampled GPU texture created by the loader.
type Texture struct {
	Name    string
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	Width   uint32
	Height  uint32
	Format  wgpu.TextureFormat
	// Placeholder is true when the texture stands in for an asset that could not be decoded.
	Placeholder bool
}

// Release releases the view and the texture.
func (t *Texture) Release() {
	if t == nil {
		return
	}
	if t.View != nil {
		t.View.Release()
		t.View = nil
	}
	if t.Texture != nil {
		t.Texture.Release()
		t.Texture = nil
	}
}

// textureLoader is the implementation of the TextureLoader interface.
type textureLoader struct {
	mu sync.RWMutex

	ctx    gpu.Context
	logger *zap.Logger

	flipVertical bool
	maxDimension int
	format       wgpu.TextureFormat

	textureCache map[string]*Texture

	backend loaderBackend
}

// TextureLoader decodes image assets and uploads them as sampled textures.
// Uploaded textures are cached by name and released together by Release.
type TextureLoader interface {
	// Decode reads an image file into RGBA8 staging data. It touches no GPU state and is safe to call concurrently.
	//
	// Parameters:
	//   - path: the image file to decode
	//
	// Returns:
	//   - common.TextureStagingData: the decoded pixels
	//   - error: error if the file cannot be read or decoded
	Decode(path string) (common.TextureStagingData, error)

	// DecodeAll decodes several files concurrently. Results are in argument order.
	//
	// Parameters:
	//   - paths: the image files to decode
	//
	// Returns:
	//   - []common.TextureStagingData: one entry per path
	//   - error: the first decode failure
	DecodeAll(paths ...string) ([]common.TextureStagingData, error)

	// Upload creates a texture with TextureBinding, CopyDst and CopySrc usage and writes the staging pixels.
	// A texture already cached under name is returned as is.
	//
	// Parameters:
	//   - name: the cache key and debug label
	//   - staging: the pixels to upload
	//
	// Returns:
	//   - *Texture: the uploaded texture
	//   - error: error if the staging data is invalid or GPU creation fails
	Upload(name string, staging common.TextureStagingData) (*Texture, error)

	// Load decodes the file at path and uploads it under the path as name.
	//
	// Parameters:
	//   - path: the image file to load
	//
	// Returns:
	//   - *Texture: the uploaded texture
	//   - error: error if decoding or uploading fails
	Load(path string) (*Texture, error)

	// LoadOrPlaceholder loads path and falls back to the 2×2 checker when decoding fails.
	// Decode failures are logged at warn level and never returned.
	//
	// Parameters:
	//   - path: the image file to load
	//
	// Returns:
	//   - *Texture: the loaded texture or the placeholder
	//   - error: error only if uploading the placeholder itself fails
	LoadOrPlaceholder(path string) (*Texture, error)

	// Get returns a cached texture or nil.
	Get(name string) *Texture

	// Release releases every cached texture.
	Release()
}

var _ TextureLoader = &textureLoader{}

// NewTextureLoader creates a TextureLoader on the given context.
//
// Parameters:
//   - ctx: the GPU context textures are created on
//   - options: a variadic list of LoaderBuilderOption functions to configure the loader
//
// Returns:
//   - TextureLoader: the configured loader
func NewTextureLoader(ctx gpu.Context, options ...LoaderBuilderOption) TextureLoader {
	l := &textureLoader{
		ctx:          ctx,
		logger:       zap.NewNop(),
		flipVertical: true,
		format:       wgpu.TextureFormatRGBA8Unorm,
		textureCache: make(map[string]*Texture),
	}
	for _, option := range options {
		option(l)
	}
	l.backend = newImageLoaderBackend(l.flipVertical, l.maxDimension)
	return l
}

func (l *textureLoader) Decode(path string) (common.TextureStagingData, error) {
	return l.backend.Decode(path)
}

func (l *textureLoader) DecodeAll(paths ...string) ([]common.TextureStagingData, error) {
	out := make([]common.TextureStagingData, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			staging, err := l.backend.Decode(path)
			if err != nil {
				return err
			}
			out[i] = staging
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *textureLoader) Upload(name string, staging common.TextureStagingData) (*Texture, error) {
	l.mu.RLock()
	if cached, ok := l.textureCache[name]; ok {
		l.mu.RUnlock()
		return cached, nil
	}
	l.mu.RUnlock()

	tex, err := l.upload(name, staging)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.textureCache[name]; ok {
		tex.Release()
		l.logger.Debug("concurrent upload lost, keeping cached texture", zap.String("name", name))
		return cached, nil
	}
	l.textureCache[name] = tex

	return tex, nil
}

func (l *textureLoader) Load(path string) (*Texture, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}
	staging, err := l.Decode(path)
	if err != nil {
		return nil, err
	}
	return l.Upload(path, staging)
}

func (l *textureLoader) LoadOrPlaceholder(path string) (*Texture, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}
	staging, err := l.Decode(path)
	if err == nil {
		return l.Upload(path, staging)
	}

	l.logger.Warn("texture asset unavailable, using placeholder", zap.String("path", path), zap.Error(err))
	tex, uploadErr := l.Upload(PlaceholderName, Checker())
	if uploadErr != nil {
		return nil, fmt.Errorf("failed to upload placeholder for %s: %w", path, uploadErr)
	}
	tex.Placeholder = true
	return tex, nil
}

func (l *textureLoader) Get(name string) *Texture {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.textureCache[name]
}

func (l *textureLoader) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for name, tex := range l.textureCache {
		tex.Release()
		delete(l.textureCache, name)
	}
}

// upload creates the GPU texture and view for staging data and writes the pixels through the queue.
func (l *textureLoader) upload(name string, staging common.TextureStagingData) (*Texture, error) {
	if err := staging.Validate(); err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}
	switch l.format {
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb:
	default:
		return nil, fmt.Errorf("loader: %s: unsupported upload format %v", name, l.format)
	}

	extent := wgpu.Extent3D{
		Width:              staging.Width,
		Height:             staging.Height,
		DepthOrArrayLayers: 1,
	}
	tex, err := l.ctx.Device().CreateTexture(&wgpu.TextureDescriptor{
		Label:         name,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc,
		Dimension:     wgpu.TextureDimension2D,
		Size:          extent,
		Format:        l.format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("loader: failed to create texture %s: %w", name, err)
	}

	l.ctx.Queue().WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Aspect:   wgpu.TextureAspectAll,
		},
		staging.Pixels,
		&wgpu.TextureDataLayout{
			BytesPerRow:  staging.BytesPerRow(),
			RowsPerImage: staging.Height,
		},
		&extent,
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("loader: failed to create view for %s: %w", name, err)
	}

	l.logger.Debug("texture uploaded",
		zap.String("name", name),
		zap.Uint32("width", staging.Width),
		zap.Uint32("height", staging.Height),
	)
	return &Texture{
		Name:    name,
		Texture: tex,
		View:    view,
		Width:   staging.Width,
		Height:  staging.Height,
		Format:  l.format,
	}, nil
}
