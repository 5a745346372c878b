package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/parkadmin/internal/domain"
	"github.com/vbonduro/parkadmin/internal/photostore"
	"github.com/vbonduro/parkadmin/internal/vision"
)

var (
	ErrVisionDisabled   = errors.New("vision backend disabled")
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrImageTooLarge    = errors.New("image too large")
)

// PhotoService resolves restriction photo references and turns them into
// field suggestions.
type PhotoService struct {
	photos    photostore.PhotoStore
	visionAPI vision.VisionAnalyzer
	client    *http.Client
	logger    *slog.Logger
}

// NewPhotoService builds a PhotoService. visionAPI may be nil, in which case
// Suggest returns ErrVisionDisabled.
func NewPhotoService(photos photostore.PhotoStore, visionAPI vision.VisionAnalyzer, logger *slog.Logger) *PhotoService {
	return &PhotoService{
		photos:    photos,
		visionAPI: visionAPI,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger.With("component", "photos"),
	}
}

func (s *PhotoService) VisionEnabled() bool {
	return s.visionAPI != nil
}

// IsRemote reports whether ref is an absolute http(s) URL rather than a
// photo store key.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}

// Open returns the photo behind ref and its MIME type.
func (s *PhotoService) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	if ref == "" {
		return nil, "", fmt.Errorf("no photo: %w", domain.ErrNotFound)
	}
	if !IsRemote(ref) {
		return s.photos.Get(ctx, ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch photo: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("photo %s: %w", ref, domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("photo host returned status %d", resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Suggest reads the photo behind ref and asks the vision backend for field
// values.
func (s *PhotoService) Suggest(ctx context.Context, ref string) ([]vision.Suggestion, error) {
	if s.visionAPI == nil {
		return nil, ErrVisionDisabled
	}

	rc, _, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	imageData, err := io.ReadAll(io.LimitReader(rc, maxPhotoSize+1))
	if cerr := rc.Close(); cerr != nil {
		s.logger.Error("failed to close photo reader", "error", cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	if len(imageData) > maxPhotoSize {
		return nil, ErrImageTooLarge
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		return nil, ErrUnsupportedImage
	}

	s.logger.Info("vision analysis started", "mime_type", mimeType, "bytes", len(imageData))
	result, err := s.visionAPI.Analyze(ctx, bytes.NewReader(imageData), mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze image: %w", err)
	}
	s.logger.Info("vision analysis complete", "suggestions", len(result.Suggestions))
	s.logger.Debug("vision raw response", "response", result.RawResponse)

	return result.Suggestions, nil
}
