package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"newsdesk/internal/hub"
	"newsdesk/internal/mutate"
	"newsdesk/internal/store"
	"newsdesk/internal/web"
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

type cliEnv struct {
	t  *testing.T
	db string
}

func newCLIEnv(t *testing.T) *cliEnv {
	return &cliEnv{t: t, db: filepath.Join(t.TempDir(), "board.sqlite")}
}

func (c *cliEnv) run(args ...string) []byte {
	c.t.Helper()
	full := append([]string{"--db", c.db}, args...)
	stdout, stderr, err := runCLI(c.t, full)
	if err != nil {
		c.t.Fatalf("command failed: newsdesk %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, stderr, stdout)
	}
	return stdout
}

func (c *cliEnv) data(args ...string) map[string]any {
	c.t.Helper()
	stdout := c.run(args...)
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		c.t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, stdout, args)
	}
	d, ok := env["data"].(map[string]any)
	if !ok {
		c.t.Fatalf("expected data object; got %#v", env["data"])
	}
	return d
}

func ids(v any) []int64 {
	xs, _ := v.([]any)
	out := make([]int64, 0, len(xs))
	for _, x := range xs {
		f, _ := x.(float64)
		out = append(out, int64(f))
	}
	return out
}

func TestArticlesCommands(t *testing.T) {
	c := newCLIEnv(t)

	for _, title := range []string{"Budget vote", "Campus housing", "Dining review"} {
		res := c.data("articles", "add", "--title", title, "--author", "Desk")
		if res["success"] != true {
			t.Fatalf("add %q: %#v", title, res)
		}
	}

	res := c.data("articles", "reorder", "3,1")
	if got, want := ids(res["order"]), []int64{3, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("reorder: got %v want %v", got, want)
	}
	if got := ids(c.data("articles", "list")["order"]); !reflect.DeepEqual(got, []int64{3, 1, 2}) {
		t.Fatalf("list after reorder: %v", got)
	}

	res = c.data("articles", "archive", "1")
	if got := ids(res["order"]); !reflect.DeepEqual(got, []int64{3, 2}) {
		t.Fatalf("archive: %v", got)
	}
	res = c.data("articles", "activate", "1")
	if got := ids(res["order"]); !reflect.DeepEqual(got, []int64{3, 2, 1}) {
		t.Fatalf("activate: %v", got)
	}

	c.data("articles", "status", "2", "Needs Edit", "--name", "Sam", "--email", "sam@example.com")
	stdout := c.run("articles", "history", "2")
	if !strings.Contains(string(stdout), `"userName":"Sam"`) || !strings.Contains(string(stdout), `"status":"Needs Edit"`) {
		t.Fatalf("history: %s", stdout)
	}

	res = c.data("articles", "color", "2")
	if a := res["article"].(map[string]any); a["statusColor"] != "red" {
		t.Fatalf("color cycle from white: %#v", a)
	}

	got := c.data("articles", "get", "2")
	if got["title"] != "Campus housing" || got["status"] != "Needs Edit" {
		t.Fatalf("get: %#v", got)
	}

	c.data("articles", "delete", "3")
	if got := ids(c.data("articles", "list")["order"]); !reflect.DeepEqual(got, []int64{2, 1}) {
		t.Fatalf("list after delete: %v", got)
	}

	plan := c.data("resequence")
	if plan["changed"] != false {
		t.Fatalf("resequence on a dense board should change nothing: %#v", plan)
	}
	if issues, _ := c.data("doctor")["issues"].([]any); len(issues) != 0 {
		t.Fatalf("doctor: %v", issues)
	}
}

func TestArticlesTextOutput(t *testing.T) {
	c := newCLIEnv(t)
	c.run("articles", "add", "--title", "Budget vote", "--author", "Desk", "--category", "n")

	out := string(c.run("--format", "text", "articles", "list"))
	for _, want := range []string{"Title", "Budget vote", "Not Started", "N"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in text output:\n%s", want, out)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	c := newCLIEnv(t)

	_, stderr, err := runCLI(t, []string{"--db", c.db, "articles", "get", "999"})
	if err == nil || !strings.Contains(string(stderr), "not found") {
		t.Fatalf("get missing: err=%v stderr=%s", err, stderr)
	}

	_, stderr, err = runCLI(t, []string{"--db", c.db, "articles", "reorder", "x"})
	if err == nil || !strings.Contains(string(stderr), "not a valid id") {
		t.Fatalf("reorder garbage: err=%v stderr=%s", err, stderr)
	}

	_, _, err = runCLI(t, []string{"--db", c.db, "articles", "add", "--author", "Desk"})
	if err == nil {
		t.Fatalf("add without title should fail")
	}
}

func TestAttendanceCommands(t *testing.T) {
	c := newCLIEnv(t)
	mem := c.data("attendance", "add-member", "Lin")
	meet := c.data("attendance", "add-meeting", "Mon")
	memberID := "1"
	meetingID := "1"
	if mem["id"] != float64(1) || meet["id"] != float64(1) {
		t.Fatalf("unexpected ids: %#v %#v", mem, meet)
	}

	if v := c.data("attendance", "toggle", memberID, meetingID)["value"]; v != true {
		t.Fatalf("first toggle: %v", v)
	}
	if v := c.data("attendance", "toggle", memberID, meetingID, "--set", "true")["value"]; v != true {
		t.Fatalf("explicit set: %v", v)
	}

	out := string(c.run("--format", "text", "attendance", "matrix"))
	if !strings.Contains(out, "Lin") || !strings.Contains(out, "Mon") || !strings.Contains(out, "✓") {
		t.Fatalf("matrix:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"--db", c.db, "attendance", "add-member", "Lin"}); err == nil {
		t.Fatalf("duplicate member should fail")
	}
	c.data("attendance", "remove-member", memberID)
	if _, _, err := runCLI(t, []string{"--db", c.db, "attendance", "toggle", memberID, meetingID}); err == nil {
		t.Fatalf("toggle for removed member should fail")
	}
}

func TestWatchPrintsSnapshot(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "board.sqlite"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	h := hub.New(hub.Config{})
	svc := mutate.NewService(st, h, mutate.Options{})
	if _, err := svc.Insert(ctx, mutate.NewArticle{Title: "Budget vote", Author: "Desk"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	srv, err := web.NewServer(svc, h, nil, web.ServerConfig{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer h.Close()

	stdout, stderr, err := runCLI(t, []string{"--format", "text", "watch", "--addr", ts.URL, "--limit", "1"})
	if err != nil {
		t.Fatalf("watch: %v\nstderr:\n%s", err, stderr)
	}
	out := string(stdout)
	if !strings.Contains(out, "snapshot") || !strings.Contains(out, "Budget vote") {
		t.Fatalf("watch output:\n%s", out)
	}
}

func TestWSURL(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:8080":         "ws://127.0.0.1:8080/ws",
		"http://localhost:9000":  "ws://localhost:9000/ws",
		"https://desk.example":   "wss://desk.example/ws",
		"ws://localhost:1/other": "ws://localhost:1/other",
	}
	for in, want := range cases {
		got, err := wsURL(in)
		if err != nil || got != want {
			t.Fatalf("wsURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}
