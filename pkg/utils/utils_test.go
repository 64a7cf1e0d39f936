package utils

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	Info("request sent", "method", "GET", "attempt", 2)
	Warn("odd keyvals", "dangling")

	out := buf.String()
	assert.Contains(t, out, "INFO: request sent method=GET attempt=2")
	assert.Contains(t, out, "WARN: odd keyvals dangling=?")
}

func TestLogger_NoopBeforeInit(t *testing.T) {
	SetOutput(nil)
	// Не должно паниковать
	Error("nobody listens", "k", "v")
}

func TestInitLogger_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(dir, "test"))
	Info("hello")
	Close()

	matches, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestThumbnail_ResizesWideImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for x := 0; x < 400; x++ {
		src.Set(x, x%200, color.RGBA{R: 200, A: 255})
	}
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, src))

	out, size, err := Thumbnail(in.Bytes(), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, size.X)
	assert.Equal(t, 50, size.Y)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
}

func TestThumbnail_KeepsSmallImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	var in bytes.Buffer
	require.NoError(t, png.Encode(&in, src))

	_, size, err := Thumbnail(in.Bytes(), 100, 90)
	require.NoError(t, err)
	assert.Equal(t, image.Point{X: 40, Y: 30}, size)
}

func TestThumbnail_RejectsGarbage(t *testing.T) {
	_, _, err := Thumbnail([]byte("not an image"), 100, 85)
	assert.Error(t, err)
}

func TestSetupGracefulShutdown_CleanupCancels(t *testing.T) {
	ctx, shutdown := SetupGracefulShutdown(context.Background())
	shutdown()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
