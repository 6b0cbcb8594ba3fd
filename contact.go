package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"
)

// Fallback feedback for submissions that never produced a usable
// answer: unreachable endpoint, unreadable or unparseable response.
const msgContactFallback = "Sorry, something went wrong. Please try again later."

// ErrSubmissionInFlight rejects a submit while one is outstanding. At
// most one request is ever in flight per form.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

// FlowStatus tracks one contact form through its submission lifecycle.
type FlowStatus string

const (
	StatusIdle      FlowStatus = "idle"
	StatusSending   FlowStatus = "sending"
	StatusSucceeded FlowStatus = "succeeded"
	StatusFailed    FlowStatus = "failed"
)

// Draft holds the form's three in-progress fields.
type Draft struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// FlowState is a snapshot of the flow for rendering: status, feedback
// for the user, and the current draft.
type FlowState struct {
	Status   FlowStatus `json:"status"`
	Feedback string     `json:"feedback,omitempty"`
	Draft    Draft      `json:"draft"`
}

// Flow is the contact form's submission state machine. It starts idle,
// moves to sending on submit, and ends the attempt in succeeded or
// failed; both terminal states accept another submit. Success clears
// the draft, failure preserves it so nothing typed is lost.
//
// Safe for concurrent use: the page session submits on a goroutine
// while its event loop keeps updating the draft.
type Flow struct {
	endpoint     string
	client       *http.Client
	forwardedFor string

	mu       sync.Mutex
	draft    Draft
	status   FlowStatus
	feedback string
	inFlight bool
	onChange func(FlowState)
}

// NewFlow builds a flow that submits to the given relay endpoint URL.
func NewFlow(endpoint string) *Flow {
	return &Flow{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		status:   StatusIdle,
	}
}

// SetForwardedFor stamps requests with the submitting client's IP so
// the endpoint attributes them to the browser, not to this process.
func (f *Flow) SetForwardedFor(ip string) {
	f.forwardedFor = ip
}

// OnChange registers fn to run after every state change with a
// snapshot. Only one listener is kept; the page session is the only
// consumer.
func (f *Flow) OnChange(fn func(FlowState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = fn
}

// SetDraft replaces the draft fields.
func (f *Flow) SetDraft(d Draft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = d
}

// State returns a snapshot of the flow.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Flow) stateLocked() FlowState {
	return FlowState{
		Status:   f.status,
		Feedback: f.feedback,
		Draft:    f.draft,
	}
}

// Submit runs one submission attempt to completion. It returns
// ErrSubmissionInFlight when a previous attempt is still outstanding;
// every other outcome, including delivery failure, lands in the flow
// state rather than the error return.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return ErrSubmissionInFlight
	}
	f.inFlight = true
	f.status = StatusSending
	f.feedback = ""
	snapshot := f.draft
	state := f.stateLocked()
	notify := f.onChange
	f.mu.Unlock()

	if notify != nil {
		notify(state)
	}

	succeeded, feedback := f.post(ctx, snapshot)

	f.mu.Lock()
	f.inFlight = false
	f.feedback = feedback
	if succeeded {
		f.status = StatusSucceeded
		f.draft = Draft{}
	} else {
		f.status = StatusFailed
	}
	state = f.stateLocked()
	notify = f.onChange
	f.mu.Unlock()

	if notify != nil {
		notify(state)
	}
	return nil
}

// post performs the HTTP exchange and reduces it to an outcome plus
// user feedback. A parseable error body is surfaced verbatim; anything
// else falls back to the generic message.
func (f *Flow) post(ctx context.Context, draft Draft) (bool, string) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return false, msgContactFallback
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, msgContactFallback
	}
	req.Header.Set("Content-Type", "application/json")
	if f.forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", f.forwardedFor)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return false, msgContactFallback
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32*1024))
	if err != nil {
		return false, msgContactFallback
	}

	var reply struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	parseErr := json.Unmarshal(body, &reply)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if parseErr == nil && reply.OK {
			return true, msgContactSuccess
		}
		return false, msgContactFallback
	}

	if parseErr == nil && reply.Error != "" {
		return false, reply.Error
	}
	return false, msgContactFallback
}
