package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/parkadmin/internal/domain"
	"github.com/vbonduro/parkadmin/internal/vision"
)

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

// stubVision is a minimal VisionAnalyzer for tests.
type stubVision struct {
	result   *vision.AnalysisResult
	err      error
	gotMIME  string
	gotBytes []byte
}

func (s *stubVision) Analyze(_ context.Context, r io.Reader, mimeType string) (*vision.AnalysisResult, error) {
	s.gotMIME = mimeType
	s.gotBytes, _ = io.ReadAll(r)
	return s.result, s.err
}

// stubPhotoStore is a minimal in-memory photostore.PhotoStore for tests.
type stubPhotoStore map[string][]byte

func (s stubPhotoStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	data, ok := s[key]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/png", nil
}

func TestSuggestFromStoreKey(t *testing.T) {
	v := &stubVision{result: &vision.AnalysisResult{
		Suggestions: []vision.Suggestion{{Field: domain.FieldMaxStay, Value: "2 hours"}},
	}}
	svc := NewPhotoService(stubPhotoStore{"signs/r1.png": pngHeader}, v, slog.Default())

	got, err := svc.Suggest(context.Background(), "signs/r1.png")
	require.NoError(t, err)
	assert.Equal(t, []vision.Suggestion{{Field: domain.FieldMaxStay, Value: "2 hours"}}, got)
	assert.Equal(t, "image/png", v.gotMIME)
	assert.Equal(t, pngHeader, v.gotBytes)
}

func TestSuggestFromRemoteURL(t *testing.T) {
	webp := append([]byte("RIFF\x00\x00\x00\x00WEBP"), make([]byte, 8)...)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(webp)
	}))
	defer server.Close()

	v := &stubVision{result: &vision.AnalysisResult{}}
	svc := NewPhotoService(stubPhotoStore{}, v, slog.Default())

	_, err := svc.Suggest(context.Background(), server.URL+"/sign.webp")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", v.gotMIME)
}

func TestSuggestDisabled(t *testing.T) {
	svc := NewPhotoService(stubPhotoStore{}, nil, slog.Default())
	assert.False(t, svc.VisionEnabled())

	_, err := svc.Suggest(context.Background(), "x.png")
	assert.ErrorIs(t, err, ErrVisionDisabled)
}

func TestSuggestRejectsNonImage(t *testing.T) {
	v := &stubVision{}
	svc := NewPhotoService(stubPhotoStore{"doc.txt": []byte("just some text")}, v, slog.Default())

	_, err := svc.Suggest(context.Background(), "doc.txt")
	assert.ErrorIs(t, err, ErrUnsupportedImage)
	assert.Empty(t, v.gotMIME, "vision backend must not be called")
}

func TestSuggestVisionError(t *testing.T) {
	v := &stubVision{err: errors.New("model overloaded")}
	svc := NewPhotoService(stubPhotoStore{"a.png": pngHeader}, v, slog.Default())

	_, err := svc.Suggest(context.Background(), "a.png")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer server.Close()

	svc := NewPhotoService(stubPhotoStore{"k.png": pngHeader}, nil, slog.Default())
	ctx := context.Background()

	rc, mimeType, err := svc.Open(ctx, server.URL+"/sign.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "image/jpeg", mimeType)
	assert.Equal(t, "jpeg", string(data))

	_, _, err = svc.Open(ctx, server.URL+"/missing.jpg")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = svc.Open(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rc, mimeType, err = svc.Open(ctx, "k.png")
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "image/png", mimeType)
}

func TestAllowedImageMIME(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
		ok   bool
	}{
		{"png", pngHeader, "image/png", true},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}, "image/jpeg", true},
		{"gif", []byte("GIF89a......"), "image/gif", true},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp", true},
		{"riff but not webp", append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 10)...), "", false},
		{"pdf disguised as image", []byte("%PDF-1.4 malicious content"), "", false},
		{"text", []byte("hello world"), "", false},
		{"empty", []byte{}, "", false},
		{"short riff", []byte("RIFF"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := allowedImageMIME(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
