package watch

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jzakirov/openclaw-smartlead/internal/events"
)

// --- Message types ---

type eventMsg events.Event

type healthMsg struct {
	OK                bool     `json:"ok"`
	Plugin            string   `json:"plugin"`
	WebhookPath       string   `json:"webhookPath"`
	AcceptedEvents    []string `json:"accepted_events"`
	ForwardConfigured bool     `json:"forward_configured"`
	UptimeSeconds     int64    `json:"uptime_seconds"`
}

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents connects to the bridge's SSE endpoint and feeds events
// into ch. Returns sseDisconnectedMsg when the connection drops.
func subscribeToEvents(baseURL, secret string, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{}
		req, err := http.NewRequest("GET", baseURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		if secret != "" {
			req.Header.Set("Authorization", "Bearer "+secret)
		}

		resp, err := client.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return sseDisconnectedMsg{}
		}

		scanner := bufio.NewScanner(resp.Body)
		var current struct {
			id   int64
			kind string
			data string
		}

		for scanner.Scan() {
			line := scanner.Text()

			if line == "" {
				if current.kind != "" {
					ch <- events.Event{
						ID:   current.id,
						Kind: current.kind,
						At:   time.Now(),
						Data: []byte(current.data),
					}
					current.id, current.kind, current.data = 0, "", ""
				}
				continue
			}

			switch {
			case strings.HasPrefix(line, "id: "):
				if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
					current.id = id
				}
			case strings.HasPrefix(line, "event: "):
				current.kind = line[7:]
			case strings.HasPrefix(line, "data: "):
				current.data = line[6:]
			}
		}

		return sseDisconnectedMsg{}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchHealth queries the bridge's GET descriptor.
func fetchHealth(baseURL, secret string) tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest("GET", baseURL, nil)
	if err != nil {
		return errMsg(err)
	}
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}

// reconnectAfter schedules an SSE reconnect attempt.
func reconnectAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return reconnectMsg{} })
}
