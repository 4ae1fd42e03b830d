package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/openwidget/chat/pkg/chat"
)

const requestTimeout = 15 * time.Second

// Client talks to the chat web service: session info, whisper inbox,
// message history, ban lookups, and profile settings. The session cookie
// (if any) rides along on every request via the cookie jar the caller
// configured on the http.Client.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *log.Logger
}

// New creates a Client for the service at baseURL. A nil httpClient gets a
// default one with a request timeout.
func New(baseURL string, httpClient *http.Client, logger *log.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{base: base, http: httpClient, logger: logger}, nil
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func (c *Client) endpoint(path string) string {
	ref := &url.URL{Path: path}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) getJSON(path string, out interface{}) error {
	resp, err := c.http.Get(c.endpoint(path))
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("GET %s: read body: %w", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

func (c *Client) postJSON(path string, payload []byte) error {
	resp, err := c.http.Post(c.endpoint(path), "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("POST %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

type meResponse struct {
	Nick     string          `json:"nick"`
	Username string          `json:"username"`
	Features []string        `json:"features"`
	Settings json.RawMessage `json:"settings"`
}

// Me fetches the signed-in viewer's profile. A 401/403 surfaces as an
// error; the session treats that as anonymous.
func (c *Client) Me() (*chat.Profile, error) {
	var me meResponse
	if err := c.getJSON("/api/chat/me", &me); err != nil {
		return nil, err
	}
	nick := me.Nick
	if nick == "" {
		nick = me.Username
	}
	return &chat.Profile{
		Nick:     nick,
		Features: me.Features,
		Settings: me.Settings,
	}, nil
}

type unreadResponse struct {
	MessageID int64  `json:"messageid"`
	User      string `json:"user"`
	Unread    int    `json:"unread"`
}

// UnreadWhispers fetches the unread whisper thread list.
func (c *Client) UnreadWhispers() ([]chat.WhisperThread, error) {
	var raw []unreadResponse
	if err := c.getJSON("/api/messages/unread", &raw); err != nil {
		return nil, err
	}
	threads := make([]chat.WhisperThread, 0, len(raw))
	for _, entry := range raw {
		threads = append(threads, chat.WhisperThread{
			MessageID: entry.MessageID,
			Nick:      entry.User,
			Unread:    entry.Unread,
		})
	}
	return threads, nil
}

type inboxMessage struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// History fetches the archived whisper conversation with nick, oldest
// first.
func (c *Client) History(nick string) ([]chat.HistoryEntry, error) {
	var raw []inboxMessage
	path := fmt.Sprintf("/api/messages/usr/%s/inbox", url.PathEscape(nick))
	if err := c.getJSON(path, &raw); err != nil {
		return nil, err
	}
	entries := make([]chat.HistoryEntry, 0, len(raw))
	for _, m := range raw {
		entries = append(entries, chat.HistoryEntry{
			From:      m.From,
			Text:      m.Message,
			Timestamp: time.UnixMilli(m.Timestamp),
		})
	}
	return entries, nil
}

// ChatHistory fetches the recent public backlog as raw protocol lines,
// oldest first, ready to replay through the inbound dispatch.
func (c *Client) ChatHistory() ([]string, error) {
	var lines []string
	if err := c.getJSON("/api/chat/history", &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

type banResponse struct {
	IssuedBy string `json:"issuedby"`
	Reason   string `json:"reason"`
	Start    int64  `json:"starttimestamp"`
	End      int64  `json:"endtimestamp"`
}

// BanInfo fetches the viewer's active ban. A 404 means no ban and returns
// Found=false without error.
func (c *Client) BanInfo() (*chat.BanRecord, error) {
	resp, err := c.http.Get(c.endpoint("/api/chat/me/ban"))
	if err != nil {
		return nil, fmt.Errorf("GET /api/chat/me/ban: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return &chat.BanRecord{Found: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /api/chat/me/ban: unexpected status %d", resp.StatusCode)
	}
	var raw banResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("GET /api/chat/me/ban: decode: %w", err)
	}
	record := &chat.BanRecord{
		Found:    true,
		IssuedBy: raw.IssuedBy,
		Reason:   raw.Reason,
	}
	if raw.Start > 0 {
		record.Start = time.UnixMilli(raw.Start)
	}
	if raw.End > 0 {
		record.End = time.UnixMilli(raw.End)
	}
	return record, nil
}

// SaveSettings uploads the settings blob to the viewer's profile.
func (c *Client) SaveSettings(blob []byte) error {
	return c.postJSON("/api/chat/me/settings", blob)
}

// MarkWhisperOpen marks a whisper thread as read.
func (c *Client) MarkWhisperOpen(messageID int64) error {
	return c.postJSON(fmt.Sprintf("/api/messages/msg/%d/open", messageID), nil)
}
