// Package extract normalizes loosely-structured Smartlead webhook payloads.
//
// Smartlead has shipped several payload shapes over time; the same logical
// field can arrive under different keys, sometimes nested under a
// "leadCorrespondence" sub-object. Each Context field is populated from an
// ordered precedence table of candidate key paths: first non-empty,
// non-whitespace value wins, absence stays absent. Extraction is total and
// never panics, whatever the payload looks like.
package extract

import (
	"math"
	"strconv"
	"strings"
)

// Context is the normalized record pulled from a webhook payload.
// Pointer fields and empty strings mean "not present in the payload".
type Context struct {
	EventType  string // normalized to uppercase
	CampaignID *int64
	LeadID     *int64 // distinct from LeadMapID; conflating them is a known pitfall
	LeadMapID  *int64
	LeadEmail  string // original target lead email
	ReplyFrom  string // actual responder email
	Subject    string
	Preview    string
	Timestamp  string // ISO-8601 as sent by the platform, not reparsed
	StatsID    string // unique per delivery attempt; preferred dedup key material
	MessageID  string
	AppURL     string
	SecretKey  string // payload's self-reported secret; fallback auth only

	// Raw is the full decoded payload, retained for forwarding and for the
	// summarize-from-raw fallback when no identifiers were extracted.
	Raw map[string]any
}

// Precedence tables. Order matters: earlier paths win. Dotted paths reach
// nested objects.
var (
	eventTypePaths  = []string{"event_type", "eventType", "type"}
	campaignIDPaths = []string{"campaign_id"}
	leadIDPaths     = []string{"sl_email_lead_id", "lead_id"}
	leadMapIDPaths  = []string{"sl_email_lead_map_id", "lead_map_id"}
	leadEmailPaths  = []string{"leadCorrespondence.targetLeadEmail", "sl_lead_email", "email", "lead_email"}
	replyFromPaths  = []string{"leadCorrespondence.replyReceivedFrom"}
	subjectPaths    = []string{"subject"}
	previewPaths    = []string{"preview_text", "preview", "snippet"}
	timestampPaths  = []string{"event_timestamp", "time_replied", "timestamp"}
	statsIDPaths    = []string{"stats_id"}
	messageIDPaths  = []string{"message_id"}
	appURLPaths     = []string{"app_url", "ui_master_inbox_link"}
	secretKeyPaths  = []string{"secret_key"}
)

// Extract builds a Context from an arbitrary decoded JSON object.
// The event type comes strictly from its own candidate keys; the payload's
// secret field never influences event identity.
func Extract(payload map[string]any) *Context {
	c := &Context{Raw: payload}

	c.EventType = strings.ToUpper(firstString(payload, eventTypePaths))
	c.CampaignID = firstInt(payload, campaignIDPaths)
	c.LeadID = firstInt(payload, leadIDPaths)
	c.LeadMapID = firstInt(payload, leadMapIDPaths)
	c.LeadEmail = firstString(payload, leadEmailPaths)
	c.ReplyFrom = firstString(payload, replyFromPaths)
	c.Subject = firstString(payload, subjectPaths)
	c.Preview = firstString(payload, previewPaths)
	c.Timestamp = firstString(payload, timestampPaths)
	c.StatsID = firstString(payload, statsIDPaths)
	c.MessageID = firstString(payload, messageIDPaths)
	c.AppURL = firstString(payload, appURLPaths)
	c.SecretKey = firstString(payload, secretKeyPaths)

	return c
}

// ReplyLike reports whether a payload with no recognizable event type still
// looks like a reply notification. Heuristic inherited from the platform's
// older payload shapes: lead id, stats id, or preview text present.
func (c *Context) ReplyLike() bool {
	return c.LeadID != nil || c.StatsID != "" || c.Preview != ""
}

// firstString returns the first non-empty, non-whitespace string value found
// at the candidate paths. JSON numbers are accepted and rendered back to
// their literal form (ids sometimes arrive as numbers).
func firstString(payload map[string]any, paths []string) string {
	for _, path := range paths {
		if s, ok := stringValue(valueAt(payload, path)); ok {
			return s
		}
	}
	return ""
}

// firstInt returns the first numeric value found at the candidate paths.
// Numeric-looking strings are coerced; non-finite values are rejected.
func firstInt(payload map[string]any, paths []string) *int64 {
	for _, path := range paths {
		if n, ok := intValue(valueAt(payload, path)); ok {
			return &n
		}
	}
	return nil
}

// valueAt walks a dotted path through nested JSON objects.
func valueAt(payload map[string]any, path string) any {
	var cur any = payload
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return "", false
		}
		return s, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

func intValue(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}
