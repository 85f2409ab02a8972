package console

import (
	"testing"
	"time"

	"github.com/bcelary/google-takeout-downloader/browser"
	"github.com/bcelary/google-takeout-downloader/types"
)

// stubPage implements browser.Page for probe and catalog tests.
type stubPage struct {
	url             string
	passwordVisible bool
	affordances     []browser.Affordance
	affordancesErr  error
}

func (p *stubPage) URL() string                              { return p.url }
func (p *stubPage) Navigate(string) error                    { return nil }
func (p *stubPage) WaitForLoad(time.Duration) error          { return nil }
func (p *stubPage) PasswordInputVisible(time.Duration) bool  { return p.passwordVisible }
func (p *stubPage) SubmitPassword(string, time.Duration) error { return nil }
func (p *stubPage) ClickToken(string) error                  { return nil }

func (p *stubPage) Affordances() ([]browser.Affordance, error) {
	return p.affordances, p.affordancesErr
}

func (p *stubPage) ExpectDownload(func() error, time.Duration) (browser.Download, error) {
	return nil, nil
}

func testProbe() *Probe {
	return &Probe{LoadWait: time.Millisecond, PasswordWait: time.Millisecond}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name            string
		url             string
		passwordVisible bool
		want            types.PageState
	}{
		{
			name: "archive console",
			url:  "https://takeout.google.com/manage/archive/abc123?hl=en",
			want: types.StateArchiveReady,
		},
		{
			name: "identifier prompt",
			url:  "https://accounts.google.com/v3/signin/identifier?continue=x",
			want: types.StateNeedsIdentifier,
		},
		{
			name:            "password prompt with visible input",
			url:             "https://accounts.google.com/v3/signin/challenge/pwd?continue=x",
			passwordVisible: true,
			want:            types.StateNeedsPassword,
		},
		{
			name: "password URL without interactive input is not a password prompt",
			url:  "https://accounts.google.com/v3/signin/challenge/pwd?continue=x",
			want: types.StateUnknown,
		},
		{
			name: "non-password challenge is two-factor",
			url:  "https://accounts.google.com/v3/signin/challenge/totp",
			want: types.StateNeedsTwoFactor,
		},
		{
			name: "rejected sign-in is a dead end",
			url:  "https://accounts.google.com/signin/rejected?rrk=1",
			want: types.StateError,
		},
		{
			name: "unrelated page",
			url:  "https://www.google.com/",
			want: types.StateUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &stubPage{url: tt.url, passwordVisible: tt.passwordVisible}
			got := testProbe().Classify(page)
			if got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyPasswordPrecedence(t *testing.T) {
	// The pwd URL also matches the broader challenge pattern; it must
	// never be classified as two-factor.
	page := &stubPage{
		url:             "https://accounts.google.com/v3/signin/challenge/pwd",
		passwordVisible: true,
	}
	if got := testProbe().Classify(page); got != types.StateNeedsPassword {
		t.Errorf("Classify() = %q, want %q", got, types.StateNeedsPassword)
	}
}
