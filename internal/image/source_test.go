package imagepkg

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceBytes(t *testing.T) {
	raw := encodeJPEGForTest(t, solid(8, 8, red))

	got, mime, err := SourceBytes([]byte("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
	assert.Equal(t, "image/jpeg", mime)

	got, mime, err = SourceBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
	assert.Equal(t, "image/jpeg", mime)

	_, _, err = SourceBytes([]byte("data:image/png;base64,@@@"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodeSource(t *testing.T) {
	img, err := DecodeSource(encodeJPEGForTest(t, solid(30, 20, green)))
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())

	_, err = DecodeSource([]byte("<html></html>"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDownloadSource(t *testing.T) {
	photo := encodeJPEGForTest(t, solid(16, 16, blue))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(photo)
		case "/page":
			w.Write([]byte("<html>nope</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	got, err := DownloadSource(context.Background(), srv.URL+"/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, photo, got)

	page, err := DownloadSource(context.Background(), srv.URL+"/page")
	require.NoError(t, err, "undecodable bodies are returned for Compose to fall back on")
	assert.Equal(t, []byte("<html>nope</html>"), page)

	_, err = DownloadSource(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}
