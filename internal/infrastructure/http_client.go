package infrastructure

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// userAgentTransport rotates the User-Agent header across a fixed pool and
// applies an optional request rate limit to every upstream call
type userAgentTransport struct {
	base    http.RoundTripper
	agents  *userAgentPool
	limiter *rate.Limiter
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.agents.random())
	}
	return t.base.RoundTrip(r)
}

type userAgentPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func newUserAgentPool(agents []string) *userAgentPool {
	if len(agents) == 0 {
		agents = domain.DefaultUserAgents
	}
	return &userAgentPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: append([]string(nil), agents...),
	}
}

func (p *userAgentPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

// NewUpstreamClient builds the HTTP client shared by the probe, the format
// resolver and the payload fetcher
func NewUpstreamClient(config *domain.UpstreamConfig) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	if proxy := strings.TrimSpace(config.Proxy); proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream proxy %q: %w", proxy, err)
		}
		base.Proxy = http.ProxyURL(u)
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &http.Client{
		Transport: &userAgentTransport{
			base:    base,
			agents:  newUserAgentPool(config.UserAgents),
			limiter: limiter,
		},
		Timeout: config.Timeout,
	}, nil
}

// contentURL joins the content base and "<id>.<format>"
func contentURL(base string, id int64, format domain.Format) string {
	return strings.TrimRight(base, "/") + "/" + domain.EntryName(id, format)
}
