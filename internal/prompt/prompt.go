// Package prompt renders a normalized event context into the instruction
// string handed to the downstream agent.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jzakirov/openclaw-smartlead/internal/extract"
)

// NotificationPrefix is the literal opening phrase the agent is instructed to
// use for its user-facing notification. Downstream consumers pattern-match on
// this exact string; do not reword it.
const NotificationPrefix = "New lead answer"

// Build renders the instruction for a reply event. Pure function; only
// fields present in the context are enumerated, and the next-steps section
// depends on which identifiers were extracted.
func Build(c *extract.Context, channel string) string {
	var b strings.Builder

	b.WriteString("A lead replied to a Smartlead outreach campaign.\n\n")

	details := detailLines(c)
	if len(details) > 0 {
		b.WriteString("Event details:\n")
		for _, line := range details {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Next steps:\n")
	switch {
	case c.CampaignID != nil && c.LeadID != nil:
		fmt.Fprintf(&b, "1. Fetch the full conversation history for campaign %d and lead %d from the Smartlead API.\n", *c.CampaignID, *c.LeadID)
		b.WriteString("2. Read the latest reply in context and decide whether a response is warranted.\n")
	case c.LeadEmail != "" || c.ReplyFrom != "":
		email := c.LeadEmail
		if email == "" {
			email = c.ReplyFrom
		}
		fmt.Fprintf(&b, "1. Look up the lead by email %s via the Smartlead API to resolve its campaign and lead ids.\n", email)
		b.WriteString("2. Fetch the conversation history for the resolved ids and read the latest reply in context.\n")
	default:
		b.WriteString("1. No campaign or lead identifiers could be extracted from this event. Summarize what you can from the raw payload below, and state explicitly that identifiers were missing so the summary may be incomplete.\n")
		if raw, err := json.Marshal(c.Raw); err == nil {
			fmt.Fprintf(&b, "\nRaw payload:\n%s\n", raw)
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Finally, notify the user%s. Your notification must start with \"%s\" followed by a short summary of who replied and the gist of their reply.\n", channelHint(channel), NotificationPrefix)

	return b.String()
}

func channelHint(channel string) string {
	if channel == "" {
		return ""
	}
	return " on " + channel
}

// detailLines enumerates present fields only. Missing fields are omitted
// silently, never rendered as placeholders.
func detailLines(c *extract.Context) []string {
	var lines []string

	if c.EventType != "" {
		lines = append(lines, "Event type: "+c.EventType)
	}
	if c.CampaignID != nil {
		lines = append(lines, fmt.Sprintf("Campaign ID: %d", *c.CampaignID))
	}
	if c.LeadID != nil {
		lines = append(lines, fmt.Sprintf("Lead ID: %d", *c.LeadID))
	}
	if c.LeadMapID != nil {
		lines = append(lines, fmt.Sprintf("Lead map ID: %d", *c.LeadMapID))
	}
	if c.LeadEmail != "" {
		lines = append(lines, "Lead email: "+c.LeadEmail)
	}
	if c.ReplyFrom != "" && c.ReplyFrom != c.LeadEmail {
		lines = append(lines, "Replied from: "+c.ReplyFrom)
	}
	if c.Subject != "" {
		lines = append(lines, "Subject: "+c.Subject)
	}
	if c.Preview != "" {
		lines = append(lines, "Reply preview: "+c.Preview)
	}
	if c.Timestamp != "" {
		lines = append(lines, "Replied at: "+c.Timestamp)
	}
	if c.AppURL != "" {
		lines = append(lines, "Inbox link: "+c.AppURL)
	}

	return lines
}
