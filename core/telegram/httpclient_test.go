package telegram

import (
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

type scriptedTransport struct {
	calls int
	errs  []error
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, s.errs[s.calls-1]
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Request:    req,
	}, nil
}

func dialRefused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: &net.AddrError{Err: "refused", Addr: "api"}}
}

func TestRetryTransportRetriesTransientErrors(t *testing.T) {
	base := &scriptedTransport{errs: []error{dialRefused(), nil}}
	rt := &retryTransport{base: base, retries: 2, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()
	if base.calls != 2 {
		t.Errorf("calls = %d, want 2", base.calls)
	}
}

func TestRetryTransportGivesUpAfterBudget(t *testing.T) {
	base := &scriptedTransport{errs: []error{dialRefused(), dialRefused(), dialRefused()}}
	rt := &retryTransport{base: base, retries: 2, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if base.calls != 3 {
		t.Errorf("calls = %d, want 3", base.calls)
	}
}

func TestRetryTransportDoesNotReplayOpaqueBody(t *testing.T) {
	base := &scriptedTransport{errs: []error{dialRefused(), nil}}
	rt := &retryTransport{base: base, retries: 2, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", nil)
	req.Body = io.NopCloser(strings.NewReader("payload"))
	req.GetBody = nil

	if _, err := rt.RoundTrip(req); err == nil {
		t.Fatal("expected the dial error to surface without a retry")
	}
	if base.calls != 1 {
		t.Errorf("calls = %d, want 1", base.calls)
	}
}

func TestRetryTransportRebuildsBodyFromGetBody(t *testing.T) {
	base := &scriptedTransport{errs: []error{dialRefused(), nil}}
	rt := &retryTransport{base: base, retries: 2, backoff: time.Millisecond}

	req, _ := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage",
		strings.NewReader("chat_id=1"))
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()
	if base.calls != 2 {
		t.Errorf("calls = %d, want 2", base.calls)
	}
}
