package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	xproxy "golang.org/x/net/proxy"

	"exchange-core/pkg/exchanges/common"
)

// Credentials authenticate one account against the venue. Immutable for the
// lifetime of the transport; rotation means building a new one.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// TransportConfig tunes the resilient call path.
type TransportConfig struct {
	BaseURLs        []string // ordered fallback list
	ProxyURL        string   // scheme://host:port, empty = direct
	PublicTimeout   time.Duration
	PrivateTimeout  time.Duration
	MaxAttempts     int
	Backoff         time.Duration // linear: attempt N waits N*Backoff
	Testnet         bool
	TimestampFormat TimestampFormat
}

func (c *TransportConfig) applyDefaults() {
	if len(c.BaseURLs) == 0 {
		c.BaseURLs = []string{"https://www.okx.com"}
	}
	if c.PublicTimeout <= 0 {
		c.PublicTimeout = 5 * time.Second
	}
	if c.PrivateTimeout <= 0 {
		c.PrivateTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
}

// Request describes one venue call. Path includes the encoded query string,
// which is part of the signed payload.
type Request struct {
	Method  string
	Path    string
	Body    string
	Private bool
}

// Transport executes signed venue calls with per-call timeouts, bounded
// retry on transient failures, and ordered base-URL fallback.
type Transport struct {
	http   *http.Client
	cfg    TransportConfig
	creds  Credentials
	signer *Signer
	clock  *TimeSync
	rate   *common.RateTracker
}

func NewTransport(cfg TransportConfig, creds Credentials) (*Transport, error) {
	cfg.applyDefaults()
	httpClient, err := newHTTPClient(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	return &Transport{
		http:   httpClient,
		cfg:    cfg,
		creds:  creds,
		signer: NewSigner(creds.APISecret, cfg.TimestampFormat),
		rate:   common.NewRateTracker(3, time.Minute),
	}, nil
}

// SetClock attaches a venue clock used for signing timestamps. Optional;
// without it the local clock is used.
func (t *Transport) SetClock(clock *TimeSync) {
	t.clock = clock
}

// newHTTPClient builds a client routed through the configured proxy. The
// dialer is injected here at construction; no process-wide state is touched.
func newHTTPClient(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return &http.Client{}, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(u)},
		}, nil
	case "socks5":
		var auth *xproxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &xproxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := xproxy.SOCKS5("tcp", u.Host, auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		tr := &http.Transport{}
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			tr.DialContext = cd.DialContext
		} else {
			tr.Dial = dialer.Dial
		}
		return &http.Client{Transport: tr}, nil
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
}

// envelope is the venue's standard response wrapper.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Execute runs the request, retrying transient failures with linear backoff.
// Every attempt is re-signed with a fresh timestamp; a stale signature is
// never resent.
func (t *Transport) Execute(ctx context.Context, req Request) (json.RawMessage, error) {
	timeout := t.cfg.PublicTimeout
	if req.Private {
		timeout = t.cfg.PrivateTimeout
		if d := t.rate.SuggestedDelay(); d > 0 {
			log.Printf("transport: delaying private call %s after recent rate-limit rejections", d)
			if err := sleepCtx(ctx, d); err != nil {
				return nil, err
			}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		data, err := t.attempt(ctx, req, timeout)
		if err == nil {
			if req.Private {
				t.rate.RecordSuccess()
			}
			return data, nil
		}
		lastErr = err

		var apiErr *common.APIError
		if !errors.As(err, &apiErr) {
			return nil, err
		}
		if apiErr.Kind == common.KindRateLimit {
			t.rate.RecordRejection()
			return nil, err
		}
		if !apiErr.Transient() {
			return nil, err
		}
		if apiErr.Kind == common.KindTimestampSkew && t.clock != nil {
			if serr := t.clock.Sync(ctx); serr != nil {
				log.Printf("transport: clock re-sync after skew rejection failed: %v", serr)
			}
		}
		if attempt < t.cfg.MaxAttempts {
			log.Printf("transport: attempt %d/%d failed (%s), retrying", attempt, t.cfg.MaxAttempts, apiErr.Kind)
			if err := sleepCtx(ctx, time.Duration(attempt)*t.cfg.Backoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// attempt tries each base URL in order within one per-call timeout budget.
// Only connectivity failures move on to the next candidate.
func (t *Transport) attempt(ctx context.Context, req Request, timeout time.Duration) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var connErr error
	for _, base := range t.cfg.BaseURLs {
		data, err := t.roundTrip(callCtx, base, req)
		if err == nil {
			return data, nil
		}
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == common.KindNetworkTimeout {
			connErr = err
			if callCtx.Err() != nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}
	return nil, connErr
}

func (t *Transport) roundTrip(ctx context.Context, base string, req Request) (json.RawMessage, error) {
	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, base+req.Path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.cfg.Testnet {
		httpReq.Header.Set("x-simulated-trading", "1")
	}
	if req.Private {
		now := time.Now()
		if t.clock != nil {
			now = t.clock.Now()
		}
		ts := t.signer.Timestamp(now)
		httpReq.Header.Set("OK-ACCESS-KEY", t.creds.APIKey)
		httpReq.Header.Set("OK-ACCESS-SIGN", t.signer.Sign(ts, req.Method, req.Path, req.Body))
		httpReq.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		if t.creds.Passphrase != "" {
			httpReq.Header.Set("OK-ACCESS-PASSPHRASE", t.creds.Passphrase)
		}
	}

	res, err := t.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, common.NewTimeoutError(err.Error())
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, common.NewTimeoutError(fmt.Sprintf("read response: %v", err))
	}

	var env envelope
	if jerr := json.Unmarshal(body, &env); jerr != nil {
		if res.StatusCode >= 300 {
			return nil, common.ClassifyProviderCode(res.StatusCode, "", strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("decode %s %s: %w", req.Method, req.Path, jerr)
	}
	if env.Code != "" && env.Code != "0" {
		return nil, common.ClassifyProviderCode(res.StatusCode, env.Code, env.Msg)
	}
	if res.StatusCode >= 300 {
		return nil, common.ClassifyProviderCode(res.StatusCode, env.Code, env.Msg)
	}
	return env.Data, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
