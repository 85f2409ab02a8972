package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bcelary/google-takeout-downloader/browser"
	"github.com/bcelary/google-takeout-downloader/log"
	"github.com/bcelary/google-takeout-downloader/metrics"
	"github.com/bcelary/google-takeout-downloader/types"
)

// scriptClassifier returns a scripted sequence of states, repeating the
// last one once exhausted.
type scriptClassifier struct {
	states []types.PageState
	calls  int
}

func (s *scriptClassifier) Classify(browser.Page) types.PageState {
	i := s.calls
	s.calls++
	if i >= len(s.states) {
		i = len(s.states) - 1
	}
	return s.states[i]
}

// recordingPrompter records prompts and fails after a configured count so
// tests can break otherwise-endless recovery loops.
type recordingPrompter struct {
	messages []string
	failFrom int // 0 = never fail
}

var errPromptStop = errors.New("prompter stop")

func (p *recordingPrompter) Acknowledge(_ context.Context, message string) error {
	p.messages = append(p.messages, message)
	if p.failFrom > 0 && len(p.messages) >= p.failFrom {
		return errPromptStop
	}
	return nil
}

// machinePage records password submissions.
type machinePage struct {
	submitted []string
	keyDelays []time.Duration
	submitErr error
}

func (p *machinePage) URL() string                             { return "" }
func (p *machinePage) Navigate(string) error                   { return nil }
func (p *machinePage) WaitForLoad(time.Duration) error         { return nil }
func (p *machinePage) Affordances() ([]browser.Affordance, error) { return nil, nil }
func (p *machinePage) PasswordInputVisible(time.Duration) bool { return true }
func (p *machinePage) ClickToken(string) error                 { return nil }

func (p *machinePage) SubmitPassword(secret string, keyDelay time.Duration) error {
	p.submitted = append(p.submitted, secret)
	p.keyDelays = append(p.keyDelays, keyDelay)
	return p.submitErr
}

func (p *machinePage) ExpectDownload(func() error, time.Duration) (browser.Download, error) {
	return nil, nil
}

func testLogger() *log.Logger {
	return log.NewLogger(&types.SessionMeta{SessionID: "test"}).WithOutput(io.Discard)
}

// fastConfig keeps all waits effectively zero without triggering the
// zero-value defaults.
func fastConfig() MachineConfig {
	return MachineConfig{
		UnknownRetryLimit: 10,
		UnknownRetryDelay: time.Nanosecond,
		SettleDelay:       time.Nanosecond,
		KeystrokeDelay:    time.Nanosecond,
		PostEntrySettle:   time.Nanosecond,
	}
}

func newTestMachine(classifier Classifier, prompter Prompter, credential Credential, page browser.Page) *Machine {
	if page == nil {
		page = &machinePage{}
	}
	if credential == nil {
		credential = NewSessionCredential()
	}
	return NewMachine(page, classifier, prompter, credential,
		fastConfig(), testLogger(), metrics.NewCollector("test"))
}

func TestEnsureReadyImmediate(t *testing.T) {
	classifier := &scriptClassifier{states: []types.PageState{types.StateArchiveReady}}
	prompter := &recordingPrompter{}
	m := newTestMachine(classifier, prompter, nil, nil)

	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	if len(prompter.messages) != 0 {
		t.Errorf("prompts = %d, want 0", len(prompter.messages))
	}
}

func TestUnknownEscalatesAfterCap(t *testing.T) {
	classifier := &scriptClassifier{states: []types.PageState{types.StateUnknown}}
	prompter := &recordingPrompter{failFrom: 1}
	m := newTestMachine(classifier, prompter, nil, nil)

	err := m.EnsureReady(context.Background())
	if !errors.Is(err, errPromptStop) {
		t.Fatalf("EnsureReady() error = %v, want prompter stop", err)
	}
	// Exactly 10 consecutive Unknown classifications before the human
	// prompt: ticks 1-9 wait, tick 10 escalates.
	if classifier.calls != 10 {
		t.Errorf("classifications before escalation = %d, want 10", classifier.calls)
	}
	if len(prompter.messages) != 1 {
		t.Errorf("prompts = %d, want 1", len(prompter.messages))
	}
}

func TestUnknownCounterResetsAfterEscalation(t *testing.T) {
	classifier := &scriptClassifier{states: []types.PageState{types.StateUnknown}}
	prompter := &recordingPrompter{failFrom: 2}
	m := newTestMachine(classifier, prompter, nil, nil)

	err := m.EnsureReady(context.Background())
	if !errors.Is(err, errPromptStop) {
		t.Fatalf("EnsureReady() error = %v, want prompter stop", err)
	}
	// The counter resets after the first escalation, so the second prompt
	// arrives after another full 10 unknowns.
	if classifier.calls != 20 {
		t.Errorf("classifications = %d, want 20 (two full cycles)", classifier.calls)
	}
}

func TestUnknownCounterResetsOnOtherState(t *testing.T) {
	states := make([]types.PageState, 0, 16)
	for i := 0; i < 9; i++ {
		states = append(states, types.StateUnknown)
	}
	states = append(states, types.StateNeedsIdentifier, types.StateUnknown, types.StateArchiveReady)
	classifier := &scriptClassifier{states: states}
	prompter := &recordingPrompter{}
	m := newTestMachine(classifier, prompter, nil, nil)

	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	// Only the identifier prompt fires; the 9-deep unknown streak was
	// reset before it could reach the cap.
	if len(prompter.messages) != 1 {
		t.Errorf("prompts = %d, want 1 (identifier only)", len(prompter.messages))
	}
}

func TestNoRepeatedActionWhileSettling(t *testing.T) {
	classifier := &scriptClassifier{states: []types.PageState{
		types.StateNeedsIdentifier,
		types.StateNeedsIdentifier,
		types.StateNeedsIdentifier,
		types.StateArchiveReady,
	}}
	prompter := &recordingPrompter{}
	m := newTestMachine(classifier, prompter, nil, nil)

	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	// Same state on consecutive ticks must not repeat the action.
	if len(prompter.messages) != 1 {
		t.Errorf("prompts = %d, want 1", len(prompter.messages))
	}
}

func TestPasswordEntryWithHeldCredential(t *testing.T) {
	page := &machinePage{}
	classifier := &scriptClassifier{states: []types.PageState{
		types.StateNeedsPassword,
		types.StateArchiveReady,
	}}
	prompter := &recordingPrompter{}
	credential := NewSessionCredential()
	credential.Seed("hunter2")
	m := newTestMachine(classifier, prompter, credential, page)

	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	if len(page.submitted) != 1 || page.submitted[0] != "hunter2" {
		t.Fatalf("submitted = %v, want one paced entry of the held secret", page.submitted)
	}
	if page.keyDelays[0] != time.Nanosecond {
		t.Errorf("keystroke delay = %v, want configured pacing preserved", page.keyDelays[0])
	}
	if len(prompter.messages) != 0 {
		t.Errorf("prompts = %d, want 0 (automated entry)", len(prompter.messages))
	}
}

func TestPasswordFallsBackToPromptWithoutCredential(t *testing.T) {
	page := &machinePage{}
	classifier := &scriptClassifier{states: []types.PageState{
		types.StateNeedsPassword,
		types.StateArchiveReady,
	}}
	prompter := &recordingPrompter{}
	m := newTestMachine(classifier, prompter, nil, page)

	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	if len(page.submitted) != 0 {
		t.Errorf("submitted = %v, want no automated entry", page.submitted)
	}
	if len(prompter.messages) != 1 {
		t.Errorf("prompts = %d, want 1", len(prompter.messages))
	}
}

func TestPasswordEntryFailureFallsBackToPrompt(t *testing.T) {
	page := &machinePage{submitErr: errors.New("input detached")}
	classifier := &scriptClassifier{states: []types.PageState{
		types.StateNeedsPassword,
		types.StateArchiveReady,
	}}
	prompter := &recordingPrompter{}
	credential := NewSessionCredential()
	credential.Seed("hunter2")
	m := newTestMachine(classifier, prompter, credential, page)

	if err := m.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}
	if len(prompter.messages) != 1 {
		t.Errorf("prompts = %d, want 1 (manual fallback)", len(prompter.messages))
	}
}

func TestEnsureReadyHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	classifier := &scriptClassifier{states: []types.PageState{types.StateUnknown}}
	m := newTestMachine(classifier, &recordingPrompter{}, nil, nil)

	if err := m.EnsureReady(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("EnsureReady() error = %v, want context.Canceled", err)
	}
}

func TestCredentialSetAtMostOnce(t *testing.T) {
	c := NewSessionCredential()
	c.Seed("first")
	c.Seed("second")

	secret, held := c.Secret()
	if !held || secret != "first" {
		t.Errorf("Secret() = (%q, %v), want first seed kept", secret, held)
	}
}

func TestCredentialEmptySeedIgnored(t *testing.T) {
	c := NewSessionCredential()
	c.Seed("")
	if _, held := c.Secret(); held {
		t.Error("Secret() held = true, want false after empty seed")
	}
}
