package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/presence/internal/config"
	"github.com/vburojevic/presence/internal/output"
)

// testGlobals creates Globals with captured stdout/stderr and file storage in
// a fresh temp dir. The tick interval is long so only sample timestamps drive
// session accounting.
func testGlobals(t *testing.T, format string) (*Globals, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Tracker.TickInterval = "1h"
	cfg.Storage.Retries = 0
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return &Globals{
		Format:      format,
		Storage:     "file",
		StoragePath: t.TempDir(),
		Stdin:       &bytes.Buffer{},
		Stdout:      stdout,
		Stderr:      stderr,
		Config:      cfg,
	}, stdout, stderr
}

// ndjsonLines decodes every line of buf.
func ndjsonLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m), scanner.Text())
		out = append(out, m)
	}
	return out
}

func ofType(lines []map[string]interface{}, typ string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, l := range lines {
		if l["type"] == typ {
			out = append(out, l)
		}
	}
	return out
}

// One three-second session: present from 1001000ms until 1004000ms.
const threeSecondSession = `{"present":false,"ts":1000000}
{"present":true,"ts":1001000}
# comment lines are ignored
{"faces":1,"ts":1002000}
{"present":true,"ts":1003000}
{"faces":0,"ts":1004000}
`

// recordSession runs watch over threeSecondSession into globals' storage.
func recordSession(t *testing.T, globals *Globals) {
	t.Helper()
	globals.Stdin = strings.NewReader(threeSecondSession)
	require.NoError(t, (&WatchCmd{}).Run(globals))
}

// --- Watch Command Tests ---

func TestWatchCmd_Run(t *testing.T) {
	t.Run("emits detection, session and summary", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)

		lines := ndjsonLines(t, stdout)
		detections := ofType(lines, "detection")
		require.Len(t, detections, 1)
		assert.Equal(t, float64(1001000), detections[0]["timestamp"])

		sessions := ofType(lines, "session")
		require.Len(t, sessions, 1)
		assert.Equal(t, float64(1001000), sessions[0]["startTime"])
		assert.Equal(t, float64(1004000), sessions[0]["endTime"])
		assert.Equal(t, float64(1004000), sessions[0]["id"])
		assert.Equal(t, 3.0, sessions[0]["duration"])
		assert.Equal(t, true, sessions[0]["stored"])

		summary := ofType(lines, "summary")
		require.Len(t, summary, 1)
		assert.Equal(t, float64(1), summary[0]["count"])
	})

	t.Run("persists to storage", func(t *testing.T) {
		globals, _, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)

		_, err := os.Stat(filepath.Join(globals.StoragePath, "faceDetectionSessions.json"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(globals.StoragePath, "faceDetectionHistory.json"))
		require.NoError(t, err)
	})

	t.Run("replaying the same stream stores nothing new", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)
		stdout.Reset()
		recordSession(t, globals)

		sessions := ofType(ndjsonLines(t, stdout), "session")
		require.Len(t, sessions, 1)
		assert.Equal(t, false, sessions[0]["stored"])
	})

	t.Run("warns on malformed samples", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		globals.Stdin = strings.NewReader("not json\n{\"present\":true,\"ts\":5}\n")

		require.NoError(t, (&WatchCmd{}).Run(globals))
		lines := ndjsonLines(t, stdout)
		assert.Len(t, ofType(lines, "warning"), 1)
		assert.Len(t, ofType(lines, "detection"), 1)
		assert.Empty(t, ofType(lines, "session"), "in-flight session is abandoned at end of input")
	})

	t.Run("text output", func(t *testing.T) {
		globals, stdout, stderr := testGlobals(t, "text")
		recordSession(t, globals)

		assert.Contains(t, stdout.String(), "00:00:03")
		assert.Contains(t, stderr.String(), "Watching presence samples from stdin")
	})

	t.Run("missing input file", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		err := (&WatchCmd{Input: filepath.Join(t.TempDir(), "missing.ndjson")}).Run(globals)
		require.Error(t, err)
		assert.Contains(t, stdout.String(), "INPUT_NOT_FOUND")
	})

	t.Run("reads from input file", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		path := filepath.Join(t.TempDir(), "samples.ndjson")
		require.NoError(t, os.WriteFile(path, []byte(threeSecondSession), 0o644))

		require.NoError(t, (&WatchCmd{Input: path}).Run(globals))
		assert.Len(t, ofType(ndjsonLines(t, stdout), "session"), 1)
	})
}

// --- Sessions Command Tests ---

func TestSessionsCmd_Run(t *testing.T) {
	t.Run("lists stored sessions", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)
		stdout.Reset()

		require.NoError(t, (&SessionsCmd{Sort: "recent"}).Run(globals))
		lines := ndjsonLines(t, stdout)
		require.Len(t, ofType(lines, "session"), 1)
		summary := ofType(lines, "summary")
		require.Len(t, summary, 1)
		assert.Equal(t, 3.0, summary[0]["total_seconds"])
	})

	t.Run("where filters sessions out", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)
		stdout.Reset()

		require.NoError(t, (&SessionsCmd{Where: []string{"duration>=60"}}).Run(globals))
		lines := ndjsonLines(t, stdout)
		assert.Empty(t, ofType(lines, "session"))
		assert.Equal(t, float64(0), ofType(lines, "summary")[0]["count"])
	})

	t.Run("since drops old sessions", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)
		stdout.Reset()

		require.NoError(t, (&SessionsCmd{Since: "1h"}).Run(globals))
		assert.Empty(t, ofType(ndjsonLines(t, stdout), "session"), "the 1970 session ended long before an hour ago")
	})

	t.Run("invalid sort", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		require.Error(t, (&SessionsCmd{Sort: "alphabetical"}).Run(globals))
		assert.Contains(t, stdout.String(), "INVALID_SORT")
	})

	t.Run("invalid where", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		require.Error(t, (&SessionsCmd{Where: []string{"color=red"}}).Run(globals))
		assert.Contains(t, stdout.String(), "INVALID_WHERE")
	})

	t.Run("follow rejects non-file storage", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		globals.Storage = "memory"
		require.Error(t, (&SessionsCmd{Follow: true}).Run(globals))
		assert.Contains(t, stdout.String(), "INVALID_FLAGS")
	})

	t.Run("text table", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "text")
		recordSession(t, globals)
		stdout.Reset()

		require.NoError(t, (&SessionsCmd{}).Run(globals))
		out := stdout.String()
		assert.Contains(t, out, "00:00:03")
		assert.Contains(t, out, "1 sessions, 00:00:03 total")
	})

	t.Run("empty history in text", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "text")
		require.NoError(t, (&SessionsCmd{}).Run(globals))
		assert.Contains(t, stdout.String(), "No sessions recorded")
	})
}

func TestSessionsCmd_selectSessionsLimit(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	globals.Stdin = strings.NewReader(`{"present":true,"ts":1000}
{"present":false,"ts":2000}
{"present":true,"ts":3000}
{"present":false,"ts":8000}
`)
	require.NoError(t, (&WatchCmd{}).Run(globals))
	stdout.Reset()

	require.NoError(t, (&SessionsCmd{Sort: "duration", Limit: 1}).Run(globals))
	sessions := ofType(ndjsonLines(t, stdout), "session")
	require.Len(t, sessions, 1)
	assert.Equal(t, 5.0, sessions[0]["duration"])
}

// --- Detections Command Tests ---

func TestDetectionsCmd_Run(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	recordSession(t, globals)
	stdout.Reset()

	require.NoError(t, (&DetectionsCmd{}).Run(globals))
	lines := ndjsonLines(t, stdout)
	detections := ofType(lines, "detection")
	require.Len(t, detections, 1)
	assert.NotEmpty(t, detections[0]["timeString"])
}

// --- Clear Command Tests ---

func TestClearCmd_Run(t *testing.T) {
	t.Run("requires confirmation when not interactive", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)
		stdout.Reset()

		err := (&ClearCmd{Target: "sessions"}).Run(globals)
		require.Error(t, err)
		errs := ofType(ndjsonLines(t, stdout), "error")
		require.Len(t, errs, 1)
		assert.Equal(t, "CONFIRMATION_REQUIRED", errs[0]["code"])

		stdout.Reset()
		require.NoError(t, (&SessionsCmd{}).Run(globals))
		assert.Len(t, ofType(ndjsonLines(t, stdout), "session"), 1, "history untouched")
	})

	t.Run("--yes clears", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)
		stdout.Reset()

		require.NoError(t, (&ClearCmd{Target: "sessions", Yes: true}).Run(globals))
		cleared := ofType(ndjsonLines(t, stdout), "cleared")
		require.Len(t, cleared, 1)
		assert.Equal(t, "sessions", cleared[0]["target"])

		stdout.Reset()
		require.NoError(t, (&SessionsCmd{}).Run(globals))
		assert.Empty(t, ofType(ndjsonLines(t, stdout), "session"))

		stdout.Reset()
		require.NoError(t, (&DetectionsCmd{}).Run(globals))
		assert.Len(t, ofType(ndjsonLines(t, stdout), "detection"), 1, "detections are separate")
	})

	t.Run("all clears both", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)
		stdout.Reset()

		require.NoError(t, (&ClearCmd{Target: "all", Yes: true}).Run(globals))
		assert.Len(t, ofType(ndjsonLines(t, stdout), "cleared"), 2)
	})

	t.Run("interactive yes", func(t *testing.T) {
		globals, stdout, stderr := testGlobals(t, "text")
		recordSession(t, globals)
		stdout.Reset()
		globals.Stdin = strings.NewReader("y\n")

		cmd := &ClearCmd{Target: "detections", isTerminal: func() bool { return true }}
		require.NoError(t, cmd.Run(globals))
		assert.Contains(t, stderr.String(), "[y/N]")
		assert.Contains(t, stdout.String(), "Cleared detections")
	})

	t.Run("interactive default is no", func(t *testing.T) {
		globals, stdout, stderr := testGlobals(t, "text")
		globals.Stdin = strings.NewReader("\n")

		cmd := &ClearCmd{Target: "sessions", isTerminal: func() bool { return true }}
		require.NoError(t, cmd.Run(globals))
		assert.NotContains(t, stdout.String(), "Cleared")
		assert.Contains(t, stderr.String(), "Clear cancelled")
	})
}

// --- Export Command Tests ---

func TestExportCmd_Run(t *testing.T) {
	t.Run("json to stdout", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)
		stdout.Reset()

		require.NoError(t, (&ExportCmd{As: "json"}).Run(globals))
		var snap output.Snapshot
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &snap))
		assert.Equal(t, output.SchemaVersion, snap.SchemaVersion)
		require.Len(t, snap.Sessions, 1)
		assert.Equal(t, 3.0, snap.Sessions[0].Duration)
		assert.Len(t, snap.Detections, 1)
	})

	t.Run("plist to file", func(t *testing.T) {
		globals, _, _ := testGlobals(t, "ndjson")
		recordSession(t, globals)

		path := filepath.Join(t.TempDir(), "export.plist")
		require.NoError(t, (&ExportCmd{As: "plist", Output: path}).Run(globals))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<plist")
		assert.Contains(t, string(data), "<key>sessions</key>")
	})
}

// --- Config Command Tests ---

func TestConfigShowCmd_Run(t *testing.T) {
	t.Run("outputs config in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "text")
		require.NoError(t, (&ConfigShowCmd{}).Run(globals))

		out := stdout.String()
		assert.Contains(t, out, "Current Configuration:")
		assert.Contains(t, out, "format:")
		assert.Contains(t, out, "Storage:")
		assert.Contains(t, out, "Defaults:")
	})

	t.Run("outputs config in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		require.NoError(t, (&ConfigShowCmd{}).Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		assert.Equal(t, "config", result["type"])
		assert.Contains(t, result, "storage")
		assert.Contains(t, result, "tracker")
		assert.Contains(t, result, "defaults")
	})
}

func TestConfigPathCmd_Run(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "text")
		require.NoError(t, (&ConfigPathCmd{}).Run(globals))

		out := stdout.String()
		assert.True(t, strings.Contains(out, "Config file:") || strings.Contains(out, "No configuration file found"))
	})

	t.Run("ndjson", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		require.NoError(t, (&ConfigPathCmd{}).Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		assert.Equal(t, "config_path", result["type"])
		assert.Contains(t, result, "path")
	})
}

func TestConfigGenerateCmd_Run(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "text")
	require.NoError(t, (&ConfigGenerateCmd{}).Run(globals))

	out := stdout.String()
	assert.Contains(t, out, "# presence configuration file")
	assert.Contains(t, out, "format: ndjson")
	assert.Contains(t, out, "driver: file")
	assert.Contains(t, out, "max_sessions: 0")
}

// --- Schema Command Tests ---

func TestSchemaCmd_Run(t *testing.T) {
	t.Run("outputs all schemas by default", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		require.NoError(t, (&SchemaCmd{}).Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		assert.Equal(t, "http://json-schema.org/draft-07/schema#", result["$schema"])

		defs := result["definitions"].(map[string]interface{})
		for _, name := range []string{"session", "detection", "active", "summary", "error", "notice"} {
			assert.Contains(t, defs, name)
		}
	})

	t.Run("filters by type", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		require.NoError(t, (&SchemaCmd{Type: []string{"session", " Error "}}).Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		defs := result["definitions"].(map[string]interface{})
		assert.Len(t, defs, 2)
		assert.Contains(t, defs, "error")
	})

	t.Run("unknown type", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		require.Error(t, (&SchemaCmd{Type: []string{"log"}}).Run(globals))
		assert.Contains(t, stdout.String(), "UNKNOWN_SCHEMA")
	})
}

func TestSessionSchemaAllowsNullEnd(t *testing.T) {
	props := sessionSchema()["properties"].(map[string]interface{})
	end := props["endTime"].(map[string]interface{})
	assert.Equal(t, []string{"integer", "null"}, end["type"])
}

// --- Version Command Tests ---

func TestVersionCmd_Run(t *testing.T) {
	t.Run("ndjson", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "ndjson")
		require.NoError(t, (&VersionCmd{}).Run(globals))

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
		assert.Equal(t, "version", result["type"])
		assert.Equal(t, Version, result["version"])
	})

	t.Run("text", func(t *testing.T) {
		globals, stdout, _ := testGlobals(t, "text")
		require.NoError(t, (&VersionCmd{}).Run(globals))
		assert.Contains(t, stdout.String(), "presence "+Version)
	})
}

// --- Flag parsing ---

// Ensure flag names and aliases keep working for scripts.
func TestCommandFlagsParse(t *testing.T) {
	t.Run("sessions", func(t *testing.T) {
		var c CLI
		parser, err := kong.New(&c, KongVars(config.Default()))
		require.NoError(t, err)

		_, err = parser.Parse([]string{
			"sessions",
			"--sort", "duration",
			"--where", "duration>=60",
			"-w", "start>0",
			"--since", "yesterday",
			"-n", "5",
			"--follow",
		})
		require.NoError(t, err)
		require.Equal(t, "duration", c.Sessions.Sort)
		require.Equal(t, []string{"duration>=60", "start>0"}, c.Sessions.Where)
		require.Equal(t, "yesterday", c.Sessions.Since)
		require.Equal(t, 5, c.Sessions.Limit)
		require.True(t, c.Sessions.Follow)
		require.Equal(t, "ndjson", c.Format)
	})

	t.Run("globals and watch", func(t *testing.T) {
		var c CLI
		parser, err := kong.New(&c, KongVars(config.Default()))
		require.NoError(t, err)

		_, err = parser.Parse([]string{
			"-f", "text", "--storage", "sqlite", "--storage-path", "/tmp/p.db",
			"watch", "-i", "samples.ndjson", "--tmux", "--session", "desk",
		})
		require.NoError(t, err)
		require.Equal(t, "text", c.Format)
		require.Equal(t, "sqlite", c.Storage)
		require.Equal(t, "/tmp/p.db", c.StoragePath)
		require.Equal(t, "samples.ndjson", c.Watch.Input)
		require.True(t, c.Watch.Tmux)
		require.Equal(t, "desk", c.Watch.Session)
	})

	t.Run("clear", func(t *testing.T) {
		var c CLI
		parser, err := kong.New(&c, KongVars(config.Default()))
		require.NoError(t, err)

		_, err = parser.Parse([]string{"clear", "detections", "-y"})
		require.NoError(t, err)
		require.Equal(t, "detections", c.Clear.Target)
		require.True(t, c.Clear.Yes)

		_, err = parser.Parse([]string{"clear", "everything"})
		require.Error(t, err)
	})

	t.Run("config defaults flow into flags", func(t *testing.T) {
		cfg := config.Default()
		cfg.Defaults.Sort = "duration"
		cfg.Defaults.Limit = 7
		cfg.Server.Addr = "0.0.0.0:9000"

		var c CLI
		parser, err := kong.New(&c, KongVars(cfg))
		require.NoError(t, err)

		_, err = parser.Parse([]string{"sessions"})
		require.NoError(t, err)
		require.Equal(t, "duration", c.Sessions.Sort)
		require.Equal(t, 7, c.Sessions.Limit)

		_, err = parser.Parse([]string{"serve"})
		require.NoError(t, err)
		require.Equal(t, "0.0.0.0:9000", c.Serve.Addr)
	})
}

func TestNewGlobalsWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Verbose = true

	g := NewGlobalsWithConfig(&CLI{Format: "text", Storage: "memory"}, cfg)
	assert.Equal(t, "text", g.Format)
	assert.True(t, g.Verbose, "config verbose applies when the flag is off")
	assert.Equal(t, "memory", g.Storage)
	assert.NotNil(t, g.Logger())
}
