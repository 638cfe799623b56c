package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// HTTPPayloadFetcher implements domain.PayloadFetcher over the content endpoint
type HTTPPayloadFetcher struct {
	client      *http.Client
	contentBase string
	config      *domain.DownloadConfig
	logger      *zap.Logger
}

// NewHTTPPayloadFetcher creates a new payload fetcher
func NewHTTPPayloadFetcher(client *http.Client, contentBase string, config *domain.DownloadConfig, logger *zap.Logger) *HTTPPayloadFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPPayloadFetcher{
		client:      client,
		contentBase: contentBase,
		config:      config,
		logger:      logger,
	}
}

// Fetch downloads the full payload of id in format. Transient failures are
// retried up to config.MaxRetries times; 4xx responses are final.
func (f *HTTPPayloadFetcher) Fetch(ctx context.Context, id int64, format domain.Format) (*domain.Payload, error) {
	target := contentURL(f.contentBase, id, format)

	var payload *domain.Payload
	attempt := 0
	operation := func() error {
		attempt++
		p, err := f.fetchOnce(ctx, target)
		if err != nil {
			if fe, ok := err.(*domain.FetchError); ok && fe.IsClientError() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			if attempt <= f.maxRetries() {
				f.logger.Warn("Payload fetch attempt failed",
					zap.Int64("vid", id),
					zap.Int("attempt", attempt),
					zap.Error(err))
			}
			return err
		}
		payload = p
		return nil
	}

	if err := backoff.Retry(operation, f.newBackoff(ctx)); err != nil {
		return nil, err
	}

	f.logger.Debug("Payload fetched",
		zap.Int64("vid", id),
		zap.String("format", string(format)),
		zap.String("size", humanize.Bytes(uint64(len(payload.Data)))),
		zap.String("content_type", payload.ContentType))
	return payload, nil
}

func (f *HTTPPayloadFetcher) fetchOnce(ctx context.Context, target string) (*domain.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: target, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &domain.FetchError{URL: target, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	return &domain.Payload{
		Data:        data,
		ContentType: DetectContentType(resp.Header.Get("Content-Type"), data),
	}, nil
}

func (f *HTTPPayloadFetcher) maxRetries() int {
	if f.config == nil || f.config.MaxRetries < 0 {
		return 0
	}
	return f.config.MaxRetries
}

func (f *HTTPPayloadFetcher) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if f.config != nil {
		if f.config.RetryInitialInterval > 0 {
			b.InitialInterval = f.config.RetryInitialInterval
		}
		if f.config.RetryMaxInterval > 0 {
			b.MaxInterval = f.config.RetryMaxInterval
		}
	}
	b.MaxElapsedTime = 5 * time.Minute
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.maxRetries())), ctx)
}

// DetectContentType keeps a specific declared type and sniffs the payload
// when the server sent nothing useful
func DetectContentType(declared string, data []byte) string {
	if declared != "" && !IsGenericContentType(declared) {
		return declared
	}
	if len(data) == 0 {
		return declared
	}
	return mimetype.Detect(data).String()
}

// IsGenericContentType reports content types that say nothing about the media
func IsGenericContentType(ct string) bool {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	switch strings.ToLower(strings.TrimSpace(ct)) {
	case "", "application/octet-stream", "binary/octet-stream", "text/plain":
		return true
	}
	return false
}
