package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestFlowStartsIdle(t *testing.T) {
	flow := NewFlow("http://127.0.0.1:0/api/contact")

	state := flow.State()
	if state.Status != StatusIdle {
		t.Errorf("initial status = %s, want idle", state.Status)
	}
	if state.Draft != (Draft{}) {
		t.Errorf("initial draft = %+v, want empty", state.Draft)
	}
}

func TestFlowSuccessClearsDraft(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `{"ok":true}`))
	defer srv.Close()

	flow := NewFlow(srv.URL)
	flow.SetDraft(Draft{Name: "Ada", Email: "ada@example.com", Message: "Hello"})

	var transitions []FlowStatus
	flow.OnChange(func(s FlowState) {
		transitions = append(transitions, s.Status)
	})

	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(transitions) != 2 || transitions[0] != StatusSending || transitions[1] != StatusSucceeded {
		t.Errorf("transitions = %v, want [sending succeeded]", transitions)
	}

	state := flow.State()
	if state.Status != StatusSucceeded {
		t.Errorf("status = %s, want succeeded", state.Status)
	}
	if state.Feedback != "Thanks for reaching out! I'll respond shortly." {
		t.Errorf("feedback = %q", state.Feedback)
	}
	if state.Draft != (Draft{}) {
		t.Errorf("draft = %+v, want cleared", state.Draft)
	}
}

func TestFlowServerValidationErrorVerbatim(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusBadRequest, `{"error":"Please provide name, email, and message."}`))
	defer srv.Close()

	draft := Draft{Name: "Ada", Email: "ada@example.com", Message: ""}
	flow := NewFlow(srv.URL)
	flow.SetDraft(draft)

	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state := flow.State()
	if state.Status != StatusFailed {
		t.Errorf("status = %s, want failed", state.Status)
	}
	if state.Feedback != "Please provide name, email, and message." {
		t.Errorf("feedback = %q, want the server string verbatim", state.Feedback)
	}
	if state.Draft != draft {
		t.Errorf("draft = %+v, want it preserved", state.Draft)
	}
}

func TestFlowUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `{"ok":true}`))
	endpoint := srv.URL
	srv.Close() // nothing listens here anymore

	draft := Draft{Name: "Ada", Email: "ada@example.com", Message: "Hello"}
	flow := NewFlow(endpoint)
	flow.SetDraft(draft)

	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state := flow.State()
	if state.Status != StatusFailed {
		t.Errorf("status = %s, want failed", state.Status)
	}
	if state.Feedback != msgContactFallback {
		t.Errorf("feedback = %q, want the generic fallback", state.Feedback)
	}
	if state.Draft != draft {
		t.Errorf("draft = %+v, want it preserved", state.Draft)
	}
}

func TestFlowMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusOK, `<html>gateway error</html>`))
	defer srv.Close()

	flow := NewFlow(srv.URL)
	flow.SetDraft(Draft{Name: "Ada", Email: "ada@example.com", Message: "Hello"})

	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state := flow.State()
	if state.Status != StatusFailed || state.Feedback != msgContactFallback {
		t.Errorf("state = %+v, want failed with the generic fallback", state)
	}
}

func TestFlowServerErrorBodyShownVerbatim(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(http.StatusInternalServerError, `{"error":"Something went wrong on our end. Please try again later."}`))
	defer srv.Close()

	flow := NewFlow(srv.URL)
	flow.SetDraft(Draft{Name: "Ada", Email: "ada@example.com", Message: "Hello"})

	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state := flow.State()
	if state.Status != StatusFailed {
		t.Errorf("status = %s, want failed", state.Status)
	}
	if state.Feedback != "Something went wrong on our end. Please try again later." {
		t.Errorf("feedback = %q", state.Feedback)
	}
}

func TestFlowSingleOutstandingRequest(t *testing.T) {
	var requests atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			close(started)
		}
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	flow := NewFlow(srv.URL)
	flow.SetDraft(Draft{Name: "Ada", Email: "ada@example.com", Message: "Hello"})

	done := make(chan error, 1)
	go func() {
		done <- flow.Submit(context.Background())
	}()

	<-started
	if got := flow.State().Status; got != StatusSending {
		t.Errorf("status while in flight = %s, want sending", got)
	}

	if err := flow.Submit(context.Background()); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("second Submit returned %v, want ErrSubmissionInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	if got := requests.Load(); got != 1 {
		t.Errorf("endpoint saw %d requests, want 1", got)
	}
}

func TestFlowRestartableAfterFailure(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"Something went wrong on our end. Please try again later."}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	flow := NewFlow(srv.URL)
	flow.SetDraft(Draft{Name: "Ada", Email: "ada@example.com", Message: "Hello"})

	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if got := flow.State().Status; got != StatusFailed {
		t.Fatalf("status after first attempt = %s, want failed", got)
	}

	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	state := flow.State()
	if state.Status != StatusSucceeded {
		t.Errorf("status after retry = %s, want succeeded", state.Status)
	}
	if state.Draft != (Draft{}) {
		t.Errorf("draft = %+v, want cleared after eventual success", state.Draft)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("endpoint saw %d requests, want 2", got)
	}
}

func TestFlowForwardsClientIP(t *testing.T) {
	var forwarded string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = r.Header.Get("X-Forwarded-For")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	flow := NewFlow(srv.URL)
	flow.SetForwardedFor("203.0.113.9")
	flow.SetDraft(Draft{Name: "Ada", Email: "ada@example.com", Message: "Hello"})

	if err := flow.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if forwarded != "203.0.113.9" {
		t.Errorf("X-Forwarded-For = %q, want the client address", forwarded)
	}
}

// The flow exercised against the real relay handler, end to end.
func TestFlowAgainstRelay(t *testing.T) {
	sender := &fakeSender{}
	engine, _ := newRelayEngine(t, relayTestConfig(), sender)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	t.Run("blank message rejected verbatim", func(t *testing.T) {
		draft := Draft{Name: "Ada", Email: "ada@example.com", Message: "   "}
		flow := NewFlow(srv.URL + "/api/contact")
		flow.SetDraft(draft)

		if err := flow.Submit(context.Background()); err != nil {
			t.Fatalf("Submit: %v", err)
		}

		state := flow.State()
		if state.Status != StatusFailed {
			t.Errorf("status = %s, want failed", state.Status)
		}
		if state.Feedback != "Please provide name, email, and message." {
			t.Errorf("feedback = %q", state.Feedback)
		}
		if state.Draft != draft {
			t.Errorf("draft = %+v, want it preserved", state.Draft)
		}
	})

	t.Run("full draft delivered", func(t *testing.T) {
		flow := NewFlow(srv.URL + "/api/contact")
		flow.SetDraft(Draft{Name: "Ada", Email: "ada@example.com", Message: "Hello"})

		if err := flow.Submit(context.Background()); err != nil {
			t.Fatalf("Submit: %v", err)
		}

		state := flow.State()
		if state.Status != StatusSucceeded {
			t.Errorf("status = %s, want succeeded", state.Status)
		}
		if state.Draft != (Draft{}) {
			t.Errorf("draft = %+v, want cleared", state.Draft)
		}
		if sender.last.Message != "Hello" {
			t.Errorf("delivered submission = %+v", sender.last)
		}
	})
}
