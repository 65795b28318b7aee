// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Bounded pool of equally sized RGBA images.
//
// Raw video frames are large (a 4K RGBA frame is ~33 MB), so frame buffers are
// allocated lazily up to a fixed capacity and recycled instead of being left
// to the garbage collector.
package framepool

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

var (
	ErrExhausted = errors.New("frame pool exhausted")
	ErrForeign   = errors.New("image does not belong to pool")
)

type Pool struct {
	size image.Point
	free chan *image.RGBA

	mu        sync.Mutex
	allocated int
	capacity  int
}

// New creates Pool of images of given size holding at most capacity images
// at any time.
func New(size image.Point, capacity int) (*Pool, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("framepool.New() invalid size %v", size)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("framepool.New() invalid capacity %d", capacity)
	}
	return &Pool{
		size:     size,
		free:     make(chan *image.RGBA, capacity),
		capacity: capacity,
	}, nil
}

// Size returns size of pooled images.
func (p *Pool) Size() image.Point {
	return p.size
}

// TryGet returns a free image, allocating a new one while below capacity.
// Returns ErrExhausted if all images are in use.
func (p *Pool) TryGet() (*image.RGBA, error) {
	select {
	case img := <-p.free:
		return img, nil
	default:
	}
	if img := p.alloc(); img != nil {
		return img, nil
	}
	return nil, fmt.Errorf("%w: %d of %d images in use", ErrExhausted, p.capacity, p.capacity)
}

// Get returns a free image, blocking until one is put back when all images
// are in use.
func (p *Pool) Get(ctx context.Context) (*image.RGBA, error) {
	if img, err := p.TryGet(); err == nil {
		return img, nil
	}
	select {
	case img := <-p.free:
		return img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns image to the pool. Image contents are left as is.
func (p *Pool) Put(img *image.RGBA) error {
	if img == nil || img.Rect.Size() != p.size || len(img.Pix) != 4*p.size.X*p.size.Y {
		return ErrForeign
	}
	select {
	case p.free <- img:
		return nil
	default:
		// More images returned than ever allocated.
		return ErrForeign
	}
}

// Allocated returns number of images allocated so far.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

func (p *Pool) alloc() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocated >= p.capacity {
		return nil
	}
	p.allocated++
	return image.NewRGBA(image.Rectangle{Max: p.size})
}
