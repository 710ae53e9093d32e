package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
)

// Facing selects the camera.
type Facing string

const (
	FacingFront Facing = "user"
	FacingBack  Facing = "environment"
)

var (
	ErrCameraClosed = errors.New("capture: camera is not open")
	ErrInvalidFix   = errors.New("capture: coordinates out of range")
	ErrInvalidFrame = errors.New("capture: frame is not a JPEG or PNG image")
)

// FrameSource yields the most recent frame, if any.
type FrameSource interface {
	Frame() (image.Image, bool)
}

// Camera is a frame source that can be opened on a given side.
type Camera interface {
	FrameSource
	Open(ctx context.Context, facing Facing) error
	Close()
}

// PushCamera is a Camera fed by the client pushing encoded frames.
type PushCamera struct {
	mu     sync.RWMutex
	open   bool
	facing Facing
	frame  image.Image
}

func NewPushCamera() *PushCamera {
	return &PushCamera{facing: FacingFront}
}

func (c *PushCamera) Open(_ context.Context, facing Facing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.facing = facing
	c.frame = nil
	return nil
}

func (c *PushCamera) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.frame = nil
}

// Facing reports the side last opened.
func (c *PushCamera) Facing() Facing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.facing
}

// IsOpen reports whether frames are being accepted.
func (c *PushCamera) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Push decodes a JPEG or PNG frame and makes it current.
func (c *PushCamera) Push(data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return c.PushImage(img)
}

// PushImage makes img current.
func (c *PushCamera) PushImage(img image.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrCameraClosed
	}
	c.frame = img
	return nil
}

func (c *PushCamera) Frame() (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.open || c.frame == nil {
		return nil, false
	}
	return c.frame, true
}

// LocationSource yields the latest position fix.
type LocationSource interface {
	Location() (lat, lng float64, ok bool)
}

// Tracker holds the latest fix while watching.
type Tracker struct {
	mu       sync.RWMutex
	watching bool
	lat, lng float64
	hasFix   bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Start begins accepting fixes.
func (t *Tracker) Start() {
	t.mu.Lock()
	t.watching = true
	t.mu.Unlock()
}

// Stop releases the watch and forgets the last fix.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.watching = false
	t.hasFix = false
	t.mu.Unlock()
}

// Update records a fix. Fixes arriving while not watching are dropped.
func (t *Tracker) Update(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidFix
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.watching {
		return nil
	}
	t.lat, t.lng, t.hasFix = lat, lng, true
	return nil
}

func (t *Tracker) Location() (float64, float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lat, t.lng, t.hasFix
}
