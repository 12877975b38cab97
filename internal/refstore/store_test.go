package refstore

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"
)

func colorMat(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(10, 20, 30, 0))
	return m
}

func TestAddAndLookup(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.AddReference("front", colorMat(48, 64)))

	ref, ok := s.Reference("front")
	require.True(t, ok)
	require.Equal(t, 48, ref.Rows())

	_, ok = s.Reference("back")
	require.False(t, ok)
	require.ElementsMatch(t, []string{"front"}, s.References())
}

func TestAddReferenceReplaces(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.AddReference("front", colorMat(48, 64)))
	require.NoError(t, s.AddReference("front", colorMat(96, 128)))

	ref, ok := s.Reference("front")
	require.True(t, ok)
	require.Equal(t, 96, ref.Rows())
	require.Len(t, s.References(), 1)
}

func TestAddEmptyRejected(t *testing.T) {
	s := New()
	defer s.Close()

	require.Error(t, s.AddReference("front", gocv.Mat{}))
	require.Error(t, s.AddMask("front", gocv.Mat{}))
}

func TestAddMaskConvertsToGray(t *testing.T) {
	s := New()
	defer s.Close()

	require.NoError(t, s.AddMask("front", colorMat(48, 64)))
	mask, ok := s.Mask("front")
	require.True(t, ok)
	require.Equal(t, 1, mask.Channels())
}

func TestLoadFromDisk(t *testing.T) {
	dir := t.TempDir()
	refPath := filepath.Join(dir, "ref.png")
	img := colorMat(48, 64)
	defer img.Close()
	require.True(t, gocv.IMWrite(refPath, img))

	s := New()
	defer s.Close()

	require.NoError(t, s.LoadReference("front", refPath))
	require.NoError(t, s.LoadMask("front", refPath)) // loaded as grayscale

	ref, ok := s.Reference("front")
	require.True(t, ok)
	require.Equal(t, 3, ref.Channels())

	mask, ok := s.Mask("front")
	require.True(t, ok)
	require.Equal(t, 1, mask.Channels())

	require.Error(t, s.LoadReference("back", filepath.Join(dir, "missing.png")))
}

// writeTIFF encodes a uniform RGBA image to a TIFF file.
func writeTIFF(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, img, nil))
	require.NoError(t, f.Close())
}

func TestLoadTIFFReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.tiff")
	writeTIFF(t, path, 64, 48, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	s := New()
	defer s.Close()
	require.NoError(t, s.LoadReference("scan", path))

	ref, ok := s.Reference("scan")
	require.True(t, ok)
	require.Equal(t, 48, ref.Rows())
	require.Equal(t, 64, ref.Cols())
	require.Equal(t, 3, ref.Channels())
}

func TestDecodeFallbackChannelOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.tiff")
	writeTIFF(t, path, 8, 8, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	mat, err := decodeFallback(path)
	require.NoError(t, err)
	defer mat.Close()

	// BGR ordering
	require.EqualValues(t, 50, mat.GetUCharAt(0, 0))
	require.EqualValues(t, 100, mat.GetUCharAt(0, 1))
	require.EqualValues(t, 200, mat.GetUCharAt(0, 2))

	_, err = decodeFallback(filepath.Join(t.TempDir(), "missing.tiff"))
	require.Error(t, err)
}

func TestCloseEmptiesStore(t *testing.T) {
	s := New()
	require.NoError(t, s.AddReference("front", colorMat(48, 64)))
	s.Close()
	_, ok := s.Reference("front")
	require.False(t, ok)
	require.Empty(t, s.References())
}
