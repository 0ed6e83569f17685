package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/clara/internal/eventbus"
)

func TestManager_CreateRejectsDuplicateName(t *testing.T) {
	m := New("", eventbus.New(), 0)
	if _, err := m.Create("github", "ci pings"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Create("github", "again"); err == nil {
		t.Fatal("expected error creating duplicate webhook name")
	}
}

func TestManager_HandlerRejectsMissingOrWrongToken(t *testing.T) {
	bus := eventbus.New()
	m := New("", bus, 0)
	wh, err := m.Create("github", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(m.Handler()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook/github", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 with no token, got %d", resp.StatusCode)
	}

	resp2, err := http.Post(srv.URL+"/webhook/github?token=wrong", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp2.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong token, got %d", resp2.StatusCode)
	}

	_ = wh
}

func TestManager_HandlerAcceptsQueryTokenAndEmitsEvent(t *testing.T) {
	bus := eventbus.New()
	m := New("", bus, 0)
	wh, err := m.Create("github", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	received := make(chan eventbus.Event, 1)
	bus.Subscribe(EventTypeReceived, func(evt eventbus.Event) { received <- evt })

	srv := httptest.NewServer(http.HandlerFunc(m.Handler()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook/github?token="+wh.Token, "application/json", strings.NewReader(`{"repo":{"name":"clara"}}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	select {
	case evt := <-received:
		if evt.Source != "webhook:github" {
			t.Fatalf("unexpected source: %q", evt.Source)
		}
		repo, _ := evt.Data["repo"].(map[string]interface{})
		if repo["name"] != "clara" {
			t.Fatalf("unexpected event data: %+v", evt.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for webhook_received event")
	}
}

func TestManager_HandlerAcceptsBearerTokenAndRawBody(t *testing.T) {
	bus := eventbus.New()
	m := New("", bus, 0)
	wh, err := m.Create("plain", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	received := make(chan eventbus.Event, 1)
	bus.Subscribe(EventTypeReceived, func(evt eventbus.Event) { received <- evt })

	srv := httptest.NewServer(http.HandlerFunc(m.Handler()))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook/plain", strings.NewReader("just some text"))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+wh.Token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	select {
	case evt := <-received:
		if evt.Data["raw"] != "just some text" {
			t.Fatalf("expected raw body captured, got %+v", evt.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for webhook_received event")
	}
}

func TestManager_HandlerRateLimitsPerName(t *testing.T) {
	bus := eventbus.New()
	m := New("", bus, 1) // 1 request/minute after the initial burst-of-1
	wh, err := m.Create("limited", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(m.Handler()))
	defer srv.Close()

	url := srv.URL + "/webhook/limited?token=" + wh.Token
	first, err := http.Post(url, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if first.StatusCode != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", first.StatusCode)
	}

	second, err := http.Post(url, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected second immediate request to be rate limited, got %d", second.StatusCode)
	}
}

func TestManager_HandlerUnknownNameReturns404(t *testing.T) {
	m := New("", eventbus.New(), 0)
	srv := httptest.NewServer(http.HandlerFunc(m.Handler()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/webhook/nope?token=x", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown webhook, got %d", resp.StatusCode)
	}
}
