package infrastructure

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// HeadFormatResolver implements domain.FormatResolver with HEAD requests
// against the content endpoint
type HeadFormatResolver struct {
	client      *http.Client
	contentBase string
	candidates  []domain.Format
	logger      *zap.Logger
}

// NewHeadFormatResolver creates a resolver over domain.CandidateFormats
func NewHeadFormatResolver(client *http.Client, contentBase string, logger *zap.Logger) *HeadFormatResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeadFormatResolver{
		client:      client,
		contentBase: contentBase,
		candidates:  domain.CandidateFormats,
		logger:      logger,
	}
}

// Resolve returns the first candidate whose HEAD response looks like media.
// When none does, the last candidate is returned.
func (r *HeadFormatResolver) Resolve(ctx context.Context, id int64) domain.Format {
	for _, format := range r.candidates {
		if r.matches(ctx, id, format) {
			return format
		}
	}

	fallback := r.candidates[len(r.candidates)-1]
	r.logger.Debug("No format matched, using fallback",
		zap.Int64("vid", id),
		zap.String("format", string(fallback)))
	return fallback
}

func (r *HeadFormatResolver) matches(ctx context.Context, id int64, format domain.Format) bool {
	target := contentURL(r.contentBase, id, format)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("Format probe failed",
			zap.Int64("vid", id),
			zap.String("format", string(format)),
			zap.Error(err))
		return false
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	return IsMediaContentType(resp.Header.Get("Content-Type"))
}

// IsMediaContentType reports whether a declared content type is a video or
// generic binary payload
func IsMediaContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "video") || strings.Contains(ct, "octet-stream")
}
