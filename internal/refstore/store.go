// Package refstore holds the named reference images and binary masks
// the inspection engine registers samples against. A store is populated
// at startup and read-only afterward, so concurrent lookups are safe.
package refstore

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	// Decoders for the stdlib fallback path; line-scanner output is
	// TIFF, which OpenCV builds do not always carry.
	_ "golang.org/x/image/tiff"
	_ "image/jpeg"
	_ "image/png"
)

// Store maps string identifiers (a side or submode tag) to reference
// images and masks. Each engine instance owns its injected store;
// nothing here is process-global.
type Store struct {
	mu    sync.RWMutex
	refs  map[string]gocv.Mat
	masks map[string]gocv.Mat
}

// New creates an empty store.
func New() *Store {
	return &Store{
		refs:  make(map[string]gocv.Mat),
		masks: make(map[string]gocv.Mat),
	}
}

// AddReference registers an in-memory reference image under name. The
// store takes ownership of the Mat. An existing entry is replaced and
// released.
func (s *Store) AddReference(name string, img gocv.Mat) error {
	if img.Empty() {
		return fmt.Errorf("reference %q: empty image", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.refs[name]; ok {
		old.Close()
	}
	s.refs[name] = img
	return nil
}

// AddMask registers an in-memory binary mask under name. The mask is
// converted to single-channel if needed; the store takes ownership.
func (s *Store) AddMask(name string, mask gocv.Mat) error {
	if mask.Empty() {
		return fmt.Errorf("mask %q: empty image", name)
	}
	if mask.Channels() != 1 {
		gray := gocv.NewMat()
		gocv.CvtColor(mask, &gray, gocv.ColorBGRToGray)
		mask.Close()
		mask = gray
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.masks[name]; ok {
		old.Close()
	}
	s.masks[name] = mask
	return nil
}

// LoadReference reads a reference image from disk. Formats the OpenCV
// build lacks a codec for fall back to the stdlib decoders.
func (s *Store) LoadReference(name, path string) error {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		var err error
		if img, err = decodeFallback(path); err != nil {
			return fmt.Errorf("reference %q: cannot read %s: %w", name, path, err)
		}
	}
	return s.AddReference(name, img)
}

// LoadMask reads a binary mask from disk as grayscale.
func (s *Store) LoadMask(name, path string) error {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		var err error
		if img, err = decodeFallback(path); err != nil {
			return fmt.Errorf("mask %q: cannot read %s: %w", name, path, err)
		}
	}
	return s.AddMask(name, img)
}

// decodeFallback loads an image through the registered stdlib decoders
// and converts it to a BGR Mat.
func decodeFallback(path string) (gocv.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return gocv.Mat{}, err
	}

	bounds := src.Bounds()
	mat := gocv.NewMatWithSize(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC3)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat, nil
}

// Reference looks up a reference image. The returned Mat is shared;
// callers must not close or mutate it.
func (s *Store) Reference(name string) (gocv.Mat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.refs[name]
	return m, ok
}

// Mask looks up a mask. The returned Mat is shared; callers must not
// close or mutate it.
func (s *Store) Mask(name string) (gocv.Mat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.masks[name]
	return m, ok
}

// References returns the registered reference names.
func (s *Store) References() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.refs))
	for n := range s.refs {
		names = append(names, n)
	}
	return names
}

// Close releases every stored image.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n, m := range s.refs {
		m.Close()
		delete(s.refs, n)
	}
	for n, m := range s.masks {
		m.Close()
		delete(s.masks, n)
	}
}
