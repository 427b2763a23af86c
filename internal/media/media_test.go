package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoader_DataURI(t *testing.T) {
	raw := testPNG(t, 8, 6)
	src := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	img, err := NewLoader(0).Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
}

func TestLoader_HTTP(t *testing.T) {
	raw := testPNG(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(raw)
	}))
	defer srv.Close()

	l := NewLoader(0)
	img, err := l.Load(context.Background(), srv.URL+"/focus.png")
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = l.Load(context.Background(), srv.URL+"/missing.png")
	assert.Error(t, err)
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focus.png")
	require.NoError(t, os.WriteFile(path, testPNG(t, 3, 5), 0644))

	l := NewLoader(0)
	img, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dy())

	img, err = l.Load(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
}

func TestLoader_Failures(t *testing.T) {
	l := NewLoader(0)
	ctx := context.Background()

	_, err := l.Load(ctx, "")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	_, err = l.Load(ctx, "ftp://example.com/a.png")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	_, err = l.Load(ctx, "data:image/png;base64")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	_, err = l.Load(ctx, "data:image/png;base64,!!!")
	assert.Error(t, err)

	_, err = l.Load(ctx, "data:text/plain,not%20an%20image")
	assert.Error(t, err)

	_, err = l.Load(ctx, filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	l.maxBytes = 16
	path := filepath.Join(t.TempDir(), "big.png")
	require.NoError(t, os.WriteFile(path, testPNG(t, 20, 20), 0644))
	_, err = l.Load(ctx, path)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFit(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		maxW, maxH int
		wantW      int
		wantH      int
	}{
		{"wide image bound by width", 200, 100, 40, 12, 40, 20},
		{"tall image bound by height", 100, 400, 40, 12, 6, 24},
		{"square", 50, 50, 10, 10, 10, 10},
		{"odd height rounds up to whole cells", 30, 10, 10, 10, 10, 4},
		{"empty image", 0, 0, 10, 10, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Fit(image.Rect(0, 0, tt.w, tt.h), tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestThumbnail_RespectsBounds(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(testPNG(t, 60, 30)))
	require.NoError(t, err)

	out := Thumbnail(img, 20, 6)
	lines := strings.Split(out, "\n")
	assert.LessOrEqual(t, len(lines), 6)
	for _, line := range lines {
		assert.LessOrEqual(t, lipgloss.Width(line), 20)
	}
	assert.Contains(t, out, halfBlock)

	assert.Empty(t, Thumbnail(nil, 20, 6))
}

func TestLoader_DataURIRespectsMaxBytes(t *testing.T) {
	l := NewLoader(0)
	l.maxBytes = 16
	ctx := context.Background()

	raw := testPNG(t, 20, 20)
	_, err := l.Load(ctx, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = l.Load(ctx, "data:image/png,"+strings.Repeat("%00", 17))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = l.Load(ctx, "data:image/png,"+strings.Repeat("a", 17))
	assert.ErrorIs(t, err, ErrTooLarge)

	// 17 bytes decode past the cap even though DecodedLen allows the slack
	_, err = l.Load(ctx, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(make([]byte, 17)))
	assert.ErrorIs(t, err, ErrTooLarge)
}
