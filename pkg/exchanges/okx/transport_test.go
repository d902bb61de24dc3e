package okx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"exchange-core/pkg/exchanges/common"
)

func testTransport(t *testing.T, baseURLs []string) *Transport {
	t.Helper()
	tr, err := NewTransport(TransportConfig{
		BaseURLs:       baseURLs,
		PublicTimeout:  2 * time.Second,
		PrivateTimeout: 2 * time.Second,
		MaxAttempts:    3,
		Backoff:        5 * time.Millisecond,
	}, Credentials{APIKey: "key", APISecret: "secret", Passphrase: "phrase"})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	return tr
}

func TestRetryOnTimestampExpiredResignsEachAttempt(t *testing.T) {
	var mu sync.Mutex
	var timestamps []string
	var signatures []string
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		timestamps = append(timestamps, r.Header.Get("OK-ACCESS-TIMESTAMP"))
		signatures = append(signatures, r.Header.Get("OK-ACCESS-SIGN"))
		mu.Unlock()

		if n < 3 {
			fmt.Fprint(w, `{"code":"50102","msg":"Timestamp request expired"}`)
			return
		}
		fmt.Fprint(w, `{"code":"0","msg":"","data":[{"ok":"1"}]}`)
	}))
	defer srv.Close()

	tr := testTransport(t, []string{srv.URL})
	_, err := tr.Execute(context.Background(), Request{
		Method:  http.MethodGet,
		Path:    "/api/v5/account/balance",
		Private: true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if calls != 3 {
		t.Fatalf("expected exactly 3 requests, got %d", calls)
	}

	signer := NewSigner("secret", TimestampISO)
	for i := range timestamps {
		if timestamps[i] == "" {
			t.Fatalf("request %d missing timestamp header", i+1)
		}
		want := signer.Sign(timestamps[i], "GET", "/api/v5/account/balance", "")
		if signatures[i] != want {
			t.Errorf("request %d signature does not match its own timestamp", i+1)
		}
		if i > 0 && !(timestamps[i] > timestamps[i-1]) {
			t.Errorf("timestamps not strictly increasing: %q then %q", timestamps[i-1], timestamps[i])
		}
	}
}

func TestAuthErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"code":"50111","msg":"Invalid OK-ACCESS-KEY"}`)
	}))
	defer srv.Close()

	tr := testTransport(t, []string{srv.URL})
	_, err := tr.Execute(context.Background(), Request{Method: http.MethodGet, Path: "/x", Private: true})
	if !common.IsKind(err, common.KindAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("auth error should not be retried, got %d calls", calls)
	}
}

func TestPermissionErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"code":"50113","msg":"permission denied"}`)
	}))
	defer srv.Close()

	tr := testTransport(t, []string{srv.URL})
	_, err := tr.Execute(context.Background(), Request{Method: http.MethodGet, Path: "/x", Private: true})
	if !common.IsKind(err, common.KindPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permission error should not be retried, got %d calls", calls)
	}
}

func TestIPRestrictedIsDistinctPermissionSubkind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":"50114","msg":"IP not on allowlist"}`)
	}))
	defer srv.Close()

	tr := testTransport(t, []string{srv.URL})
	_, err := tr.Execute(context.Background(), Request{Method: http.MethodGet, Path: "/x", Private: true})

	var apiErr *common.APIError
	if !common.IsKind(err, common.KindPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if !errors.As(err, &apiErr) || apiErr.Subkind != common.SubkindIPRestricted {
		t.Errorf("expected ip_restricted subkind, got %+v", apiErr)
	}
}

func TestRateLimitSurfacesBackoffWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"code":"50011","msg":"Requests too frequent"}`)
	}))
	defer srv.Close()

	tr := testTransport(t, []string{srv.URL})
	_, err := tr.Execute(context.Background(), Request{Method: http.MethodGet, Path: "/x", Private: true})

	var apiErr *common.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != common.KindRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if apiErr.RetryAfter <= 0 {
		t.Error("rate limit error should carry a suggested backoff")
	}
	if calls != 1 {
		t.Errorf("rate limit should not be retried immediately, got %d calls", calls)
	}
}

func TestBaseURLFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"0","msg":"","data":[{"ts":"1690891200000"}]}`)
	}))
	defer srv.Close()

	// First candidate is unreachable; the call must move on and succeed.
	tr := testTransport(t, []string{"http://127.0.0.1:1", srv.URL})
	if _, err := tr.Execute(context.Background(), Request{Method: http.MethodGet, Path: "/api/v5/public/time"}); err != nil {
		t.Fatalf("expected fallback to second base URL, got %v", err)
	}
}

func TestUnreachableUpstreamClassifiedAsNetworkTimeout(t *testing.T) {
	tr := testTransport(t, []string{"http://127.0.0.1:1"})
	_, err := tr.Execute(context.Background(), Request{Method: http.MethodGet, Path: "/api/v5/public/time"})
	if !common.IsKind(err, common.KindNetworkTimeout) {
		t.Fatalf("expected network_timeout, got %v", err)
	}
}

func TestPublicCallCarriesNoAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("OK-ACCESS-KEY") != "" || r.Header.Get("OK-ACCESS-SIGN") != "" {
			t.Error("public call must not be signed")
		}
		fmt.Fprint(w, `{"code":"0","msg":"","data":[]}`)
	}))
	defer srv.Close()

	tr := testTransport(t, []string{srv.URL})
	if _, err := tr.Execute(context.Background(), Request{Method: http.MethodGet, Path: "/api/v5/public/time"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestPrivateCallCarriesAllAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range []string{"OK-ACCESS-KEY", "OK-ACCESS-SIGN", "OK-ACCESS-TIMESTAMP", "OK-ACCESS-PASSPHRASE"} {
			if r.Header.Get(h) == "" {
				t.Errorf("missing header %s", h)
			}
		}
		fmt.Fprint(w, `{"code":"0","msg":"","data":[]}`)
	}))
	defer srv.Close()

	tr := testTransport(t, []string{srv.URL})
	if _, err := tr.Execute(context.Background(), Request{Method: http.MethodGet, Path: "/x", Private: true}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

