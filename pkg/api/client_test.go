package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, nil, nil)
	require.NoError(t, err)
	return client
}

func TestMe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat/me", r.URL.Path)
		io.WriteString(w, `{"nick":"alice","features":["subscriber"],"settings":[["showtime",true]]}`)
	})

	profile, err := client.Me()
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Nick)
	assert.Equal(t, []string{"subscriber"}, profile.Features)
	assert.JSONEq(t, `[["showtime",true]]`, string(profile.Settings))
}

func TestMeUnauthenticated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Me()
	assert.Error(t, err)
}

func TestUnreadWhispers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/messages/unread", r.URL.Path)
		io.WriteString(w, `[{"messageid":12,"user":"bob","unread":3}]`)
	})

	threads, err := client.UnreadWhispers()
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, int64(12), threads[0].MessageID)
	assert.Equal(t, "bob", threads[0].Nick)
	assert.Equal(t, 3, threads[0].Unread)
}

func TestHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/messages/usr/bob/inbox", r.URL.Path)
		io.WriteString(w, `[{"from":"bob","message":"hey","timestamp":1693526400000}]`)
	})

	entries, err := client.History("bob")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].From)
	assert.Equal(t, "hey", entries[0].Text)
	assert.Equal(t, int64(1693526400000), entries[0].Timestamp.UnixMilli())
}

func TestChatHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat/history", r.URL.Path)
		io.WriteString(w, `["MSG {\"nick\":\"bob\",\"timestamp\":1,\"data\":\"hi\"}","MSG {\"nick\":\"carol\",\"timestamp\":2,\"data\":\"yo\"}"]`)
	})

	lines, err := client.ChatHistory()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"nick":"bob"`)
}

func TestBanInfoNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	record, err := client.BanInfo()
	require.NoError(t, err)
	assert.False(t, record.Found)
}

func TestBanInfoActive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"issuedby":"mod","reason":"spam","starttimestamp":1693526400000,"endtimestamp":1693612800000}`)
	})

	record, err := client.BanInfo()
	require.NoError(t, err)
	assert.True(t, record.Found)
	assert.Equal(t, "mod", record.IssuedBy)
	assert.Equal(t, "spam", record.Reason)
	assert.Equal(t, int64(1693612800000), record.End.UnixMilli())
}

func TestSaveSettingsAndMarkOpen(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.SaveSettings([]byte(`{"showtime":true}`)))
	require.NoError(t, client.MarkWhisperOpen(42))
	assert.Equal(t, []string{"/api/chat/me/settings", "/api/messages/msg/42/open"}, paths)
}
