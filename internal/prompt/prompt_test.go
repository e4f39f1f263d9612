package prompt

import (
	"strings"
	"testing"

	"github.com/jzakirov/openclaw-smartlead/internal/extract"
)

func int64p(v int64) *int64 { return &v }

func TestBuildContainsNotificationPrefixExactlyOnce(t *testing.T) {
	contexts := []*extract.Context{
		{EventType: "EMAIL_REPLY", CampaignID: int64p(1), LeadID: int64p(2)},
		{EventType: "EMAIL_REPLY", LeadEmail: "lead@example.com"},
		{EventType: "EMAIL_REPLY", Raw: map[string]any{"k": "v"}},
	}

	for i, c := range contexts {
		msg := Build(c, "discord")
		if n := strings.Count(msg, NotificationPrefix); n != 1 {
			t.Errorf("context %d: %q appears %d times, want exactly 1", i, NotificationPrefix, n)
		}
	}
}

func TestBuildDirectFetchWhenIDsPresent(t *testing.T) {
	msg := Build(&extract.Context{
		EventType:  "EMAIL_REPLY",
		CampaignID: int64p(12345),
		LeadID:     int64p(98765),
		LeadEmail:  "lead@example.com",
		Subject:    "Re: Your proposal",
		Preview:    "Thanks, happy to chat.",
		Timestamp:  "2025-01-15T10:30:00Z",
	}, "")

	if !strings.Contains(msg, "campaign 12345 and lead 98765") {
		t.Errorf("expected direct history fetch instruction, got:\n%s", msg)
	}
	if strings.Contains(msg, "Look up the lead by email") {
		t.Error("email lookup step should not appear when both ids are present")
	}
	for _, want := range []string{
		"Campaign ID: 12345",
		"Lead ID: 98765",
		"Lead email: lead@example.com",
		"Subject: Re: Your proposal",
		"Reply preview: Thanks, happy to chat.",
		"Replied at: 2025-01-15T10:30:00Z",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing detail line %q", want)
		}
	}
}

func TestBuildEmailLookupWhenOnlyEmail(t *testing.T) {
	msg := Build(&extract.Context{EventType: "EMAIL_REPLY", LeadEmail: "only@x.com"}, "")

	if !strings.Contains(msg, "Look up the lead by email only@x.com") {
		t.Errorf("expected lookup-by-email step, got:\n%s", msg)
	}
}

func TestBuildFallbackWhenNothingExtracted(t *testing.T) {
	msg := Build(&extract.Context{Raw: map[string]any{"mystery": true}}, "")

	if !strings.Contains(msg, "identifiers were missing") {
		t.Errorf("expected explicit caveat, got:\n%s", msg)
	}
	if !strings.Contains(msg, `"mystery":true`) {
		t.Errorf("expected raw payload inlined, got:\n%s", msg)
	}
}

func TestBuildOmitsMissingFieldsSilently(t *testing.T) {
	msg := Build(&extract.Context{EventType: "EMAIL_REPLY", CampaignID: int64p(1), LeadID: int64p(2)}, "")

	for _, absent := range []string{"Subject:", "Reply preview:", "Lead map ID:", "Replied at:", "Inbox link:", "Lead email:"} {
		if strings.Contains(msg, absent) {
			t.Errorf("field %q rendered despite being absent:\n%s", absent, msg)
		}
	}
}

func TestBuildChannelHint(t *testing.T) {
	msg := Build(&extract.Context{CampaignID: int64p(1), LeadID: int64p(2)}, "slack-outreach")
	if !strings.Contains(msg, "notify the user on slack-outreach") {
		t.Errorf("expected channel hint, got:\n%s", msg)
	}

	msg = Build(&extract.Context{CampaignID: int64p(1), LeadID: int64p(2)}, "")
	if !strings.Contains(msg, "notify the user.") {
		t.Errorf("expected bare notify instruction, got:\n%s", msg)
	}
}
