package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/memorygrid/internal/api/request"
	"github.com/mcoot/memorygrid/internal/api/response"
	"github.com/mcoot/memorygrid/internal/client"
	"github.com/mcoot/memorygrid/internal/client/play"
	"github.com/mcoot/memorygrid/internal/factory"
	"github.com/mcoot/memorygrid/internal/model"
	"github.com/mcoot/memorygrid/internal/testutil"
	"github.com/mcoot/memorygrid/internal/transport/ws"
)

func TestParseCells(t *testing.T) {
	tests := []struct {
		input string
		want  []int
		ok    bool
	}{
		{"3", []int{3}, true},
		{"3 7 12", []int{3, 7, 12}, true},
		{"3,7, 12", []int{3, 7, 12}, true},
		{"send", nil, false},
		{"3 x", nil, false},
		{"  ", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseCells(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintGrid(t *testing.T) {
	var buf bytes.Buffer
	printGrid(&buf, 3, 4)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "    "+"  0  1  2", lines[0])
	assert.Equal(t, " 0 | .  .  . |", lines[2])
	assert.Equal(t, " 1 | .  #  . |", lines[3])
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
		err    bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws", false},
		{"https://grid.example.com/", "wss://grid.example.com/ws", false},
		{"http://host/prefix", "ws://host/prefix/ws", false},
		{"ftp://host", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			c := &Config{ServerURL: tt.server}
			got, err := c.WebSocketURL()
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenFile(t *testing.T) {
	c := &Config{TokenFile: filepath.Join(t.TempDir(), "nested", "token")}
	require.NoError(t, c.LoadToken())
	assert.Empty(t, c.Token)

	require.NoError(t, c.SaveToken("tok-123"))

	loaded := &Config{TokenFile: c.TokenFile}
	require.NoError(t, loaded.LoadToken())
	assert.Equal(t, "tok-123", loaded.Token)

	preset := &Config{TokenFile: c.TokenFile, Token: "from-flag"}
	require.NoError(t, preset.LoadToken())
	assert.Equal(t, "from-flag", preset.Token)
}

func TestOutputFormats(t *testing.T) {
	members := []model.MemberSummary{
		{DisplayName: "Alice", Role: model.RoleMaster, Score: 0, Connected: true},
		{DisplayName: "Bob", Role: model.RolePlayer, Score: 130, Connected: false},
	}

	var text bytes.Buffer
	(&Output{format: "text", w: &text}).Print(members)
	assert.Contains(t, text.String(), "Members (2):")
	assert.Contains(t, text.String(), "Bob - player, 130 points [offline]")

	var js bytes.Buffer
	(&Output{format: "json", w: &js}).Print(members)
	var decoded []model.MemberSummary
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, members, decoded)
}

func TestMasterSession(t *testing.T) {
	app := factory.NewTestApp(ws.Config{})
	server := httptest.NewServer(app.Router)
	defer server.Close()
	app.MockRandom.QueueString("ABC123")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var auth response.AuthResponse
	require.NoError(t, NewClient(server.URL, "").Post(ctx, "/api/v1/identities/guest",
		request.CreateGuestRequest{DisplayName: "Alice"}, &auth))

	wsURL, err := (&Config{ServerURL: server.URL}).WebSocketURL()
	require.NoError(t, err)
	conn, err := client.Dial(ctx, wsURL, client.Options{Token: auth.Token, Handshake: true, Logger: testutil.NopLogger()})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	var buf bytes.Buffer
	tbl := newTable(conn, &buf, play.Timing{Reveal: time.Millisecond, Hide: time.Millisecond}, testutil.NopLogger())
	defer tbl.machine.Close()

	result, err := conn.CreateSession(ctx, "Alice", 4)
	require.NoError(t, err)
	tbl.joined(result)

	script := strings.Join([]string{"help", "start", "0 5", "send", "bogus", "end"}, "\n")
	require.NoError(t, tbl.run(ctx, strings.NewReader(script)))

	tbl.out.mu.Lock()
	output := buf.String()
	tbl.out.mu.Unlock()

	assert.Contains(t, output, "Session ABC123 (4x4 grid), you are master")
	assert.Contains(t, output, "Commands:")
	assert.Contains(t, output, "Build a pattern")
	assert.Contains(t, output, "Pattern so far: [0 5]")
	assert.Contains(t, output, `Error: unknown command "bogus"`)
	assert.Contains(t, output, "Leaderboard:")
	assert.Contains(t, output, "1. Alice")

	snap, err := app.SessionController.GetSnapshot(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, model.SessionFinished, snap.Session.Status)
}

func TestQuitStopsLoop(t *testing.T) {
	app := factory.NewTestApp(ws.Config{})
	server := httptest.NewServer(app.Router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var auth response.AuthResponse
	require.NoError(t, NewClient(server.URL, "").Post(ctx, "/api/v1/identities/guest",
		request.CreateGuestRequest{DisplayName: "Dave"}, &auth))

	wsURL, err := (&Config{ServerURL: server.URL}).WebSocketURL()
	require.NoError(t, err)
	conn, err := client.Dial(ctx, wsURL, client.Options{Token: auth.Token, Handshake: true, Logger: testutil.NopLogger()})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	var buf bytes.Buffer
	tbl := newTable(conn, &buf, play.DefaultTiming(), testutil.NopLogger())
	defer tbl.machine.Close()

	// Lines after quit are never executed
	require.NoError(t, tbl.run(ctx, strings.NewReader("quit\nstart\n")))
	tbl.out.mu.Lock()
	defer tbl.out.mu.Unlock()
	assert.NotContains(t, buf.String(), "Error")
}
