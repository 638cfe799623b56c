package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

const maxLookupBody = 1 << 20

// lookupResponse is the part of the player lookup body we care about
type lookupResponse struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Data  *struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"data"`
}

func (r *lookupResponse) locator() (string, string) {
	if r.URL != "" {
		return r.URL, r.Title
	}
	if r.Data != nil && r.Data.URL != "" {
		return r.Data.URL, r.Data.Title
	}
	return "", ""
}

// LookupProbe implements domain.IdentifierProbe against the player lookup API
type LookupProbe struct {
	client  *http.Client
	apiBase string
	logger  *zap.Logger
}

// NewLookupProbe creates a new lookup probe
func NewLookupProbe(client *http.Client, apiBase string, logger *zap.Logger) *LookupProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupProbe{
		client:  client,
		apiBase: apiBase,
		logger:  logger,
	}
}

// LookupURL builds the player-style lookup request for an identifier
func (p *LookupProbe) LookupURL(id int64) string {
	params := url.Values{}
	params.Set("appname", "web")
	params.Set("appver", "web")
	params.Set("applt", "web")
	params.Set("tags", "popview")
	params.Set("direct", "0")
	params.Set("vid", strconv.FormatInt(id, 10))

	sep := "?"
	if strings.Contains(p.apiBase, "?") {
		sep = "&"
	}
	return p.apiBase + sep + params.Encode()
}

// Probe looks up one identifier. Failures of any kind produce an invalid result.
func (p *LookupProbe) Probe(ctx context.Context, id int64) domain.ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.LookupURL(id), nil)
	if err != nil {
		return p.invalid(id, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return p.invalid(id, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxLookupBody))
		return p.invalid(id, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxLookupBody)).Decode(&body); err != nil {
		return p.invalid(id, fmt.Sprintf("decode body: %v", err))
	}

	locator, title := body.locator()
	if locator == "" {
		return p.invalid(id, "no locator in response")
	}
	return domain.ValidProbe(id, title)
}

func (p *LookupProbe) invalid(id int64, reason string) domain.ProbeResult {
	p.logger.Debug("Probe negative", zap.Int64("vid", id), zap.String("reason", reason))
	return domain.InvalidProbe(id, reason)
}
