package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tmair/snipbridge/shared/frame"
	"github.com/tmair/snipbridge/shared/handlers"
	"github.com/tmair/snipbridge/shared/logging"
	"github.com/tmair/snipbridge/shared/models"
	"github.com/tmair/snipbridge/shared/notify"
	"github.com/tmair/snipbridge/shared/protocol"
	"github.com/tmair/snipbridge/shared/tracked"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

type memStore struct {
	mu      sync.Mutex
	entries []models.Entry
	err     error
}

func (s *memStore) Append(_ context.Context, e *models.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.entries = append(s.entries, *e)
	return e.ID, nil
}

func (s *memStore) Recent(_ context.Context, limit int) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Entry(nil), s.entries...), nil
}

func (s *memStore) Close() error { return nil }

type saverFunc func(hint, content string, overwrite bool) (string, error)

func (f saverFunc) Save(hint, content string, overwrite bool) (string, error) {
	return f(hint, content, overwrite)
}

type recorder struct {
	sent []any
}

func (r *recorder) Send(v any) error {
	r.sent = append(r.sent, v)
	return nil
}

func newDispatcher(t *testing.T, opts Options) *Dispatcher {
	t.Helper()
	if opts.Saver == nil {
		opts.Saver = handlers.DefaultRegistry(t.TempDir())
	}
	if opts.Store == nil {
		opts.Store = &memStore{}
	}
	if opts.Lister == nil {
		opts.Lister = tracked.Static{}
	}
	d, err := New(opts)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func encode(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Store: &memStore{}}); err == nil {
		t.Fatal("expected error without saver")
	}
	if _, err := New(Options{Saver: saverFunc(nil)}); err == nil {
		t.Fatal("expected error without store")
	}
}

func TestHandleRejections(t *testing.T) {
	d := newDispatcher(t, Options{})
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"invalid json", `not json`, `{"status":"error","message":"Invalid JSON format."}`},
		{"sync without destination", `{"type":"SYNC"}`, `{"status":"error","message":"Missing destination in SYNC message."}`},
		{"unknown kind", `{"kind":"video"}`, `{"status":"error","message":"Unknown message type."}`},
		{"snippet without id", `{"kind":"snippet","filePath":"a.py","content":"x"}`, `{"status":"error","message":"Missing snippet id."}`},
		{"snippet missing content", `{"kind":"snippet","id":"abc","filePath":"x.py"}`, `{"status":"error","id":"abc","message":"Invalid message format."}`},
		{"snippet missing path", `{"kind":"snippet","id":"abc","content":"x"}`, `{"status":"error","id":"abc","message":"Invalid message format."}`},
		{"assistant missing content", `{"kind":"assistant","id":"m1"}`, `{"status":"error","message":"Invalid message format."}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.Handle(context.Background(), []byte(tt.in), &recorder{})
			if resp == nil {
				t.Fatal("expected a reply")
			}
			if got := encode(t, resp); got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestHandleSnippetSaved(t *testing.T) {
	base := t.TempDir()
	var notified []string
	d := newDispatcher(t, Options{
		Saver:    handlers.DefaultRegistry(base),
		Notifier: notify.Func(func(id, path string) { notified = append(notified, id+"="+path) }),
	})

	in := `{"kind":"snippet","id":"s1","filePath":"hello.py","content":"# Path: pkg/hello.py\n\nprint('hi')"}`
	resp := d.Handle(context.Background(), []byte(in), &recorder{})

	want := filepath.Join(base, "pkg", "hello.py")
	if resp.Status != protocol.StatusSuccess || resp.SavedPath != want || resp.ID == nil || *resp.ID != "s1" {
		t.Fatalf("unexpected reply %+v", resp)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "print('hi')\n" {
		t.Fatalf("unexpected content %q", data)
	}
	if len(notified) != 1 || notified[0] != "s1="+want {
		t.Fatalf("unexpected notifications %q", notified)
	}

	// A second save of the same declaration gets a suffixed path.
	resp = d.Handle(context.Background(), []byte(in), &recorder{})
	if resp.SavedPath != filepath.Join(base, "pkg", "hello(1).py") {
		t.Fatalf("expected collision suffix, got %q", resp.SavedPath)
	}
}

func TestHandleSnippetOverwritePolicy(t *testing.T) {
	var got []bool
	saver := saverFunc(func(_, _ string, overwrite bool) (string, error) {
		got = append(got, overwrite)
		return "out.txt", nil
	})
	d := newDispatcher(t, Options{Saver: saver, Overwrite: true})

	d.Handle(context.Background(), []byte(`{"kind":"snippet","id":"1","filePath":"a.py","content":"x"}`), &recorder{})
	d.Handle(context.Background(), []byte(`{"kind":"snippet","id":"2","filePath":"a.py","content":"x","overwrite":false}`), &recorder{})

	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Fatalf("unexpected overwrite flags %v", got)
	}
}

func TestHandleSnippetSaveFailure(t *testing.T) {
	saver := saverFunc(func(string, string, bool) (string, error) {
		return "", errors.New("disk full")
	})
	d := newDispatcher(t, Options{Saver: saver})

	resp := d.Handle(context.Background(), []byte(`{"kind":"snippet","id":"abc","filePath":"a.py","content":"x"}`), &recorder{})
	want := `{"status":"error","id":"abc","message":"Failed to save file: disk full"}`
	if got := encode(t, resp); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestHandleSnippetNoHandler(t *testing.T) {
	d := newDispatcher(t, Options{})
	resp := d.Handle(context.Background(), []byte(`{"kind":"snippet","id":"abc","filePath":"notes","content":"plain words"}`), &recorder{})
	if resp.Status != protocol.StatusError || !strings.HasPrefix(resp.Message, "Failed to save file: ") {
		t.Fatalf("unexpected reply %+v", resp)
	}
}

func TestHandleAssistantMessage(t *testing.T) {
	st := &memStore{}
	d := newDispatcher(t, Options{Store: st})

	resp := d.Handle(context.Background(), []byte(`{"kind":"assistant","id":"m1","filePath":"chat.md","content":"hello"}`), &recorder{})
	if got := encode(t, resp); got != `{"status":"success","content":"hello"}` {
		t.Fatalf("unexpected reply %s", got)
	}
	if len(st.entries) != 1 {
		t.Fatalf("expected one stored entry, got %d", len(st.entries))
	}
	e := st.entries[0]
	if e.ID != "m1" || e.FilePath != "chat.md" || e.ContentHash == "" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestHandleAssistantStoreFailure(t *testing.T) {
	d := newDispatcher(t, Options{Store: &memStore{err: errors.New("locked")}})
	resp := d.Handle(context.Background(), []byte(`{"kind":"assistant","content":"hello"}`), &recorder{})
	want := `{"status":"error","message":"Failed to store message: locked"}`
	if got := encode(t, resp); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestHandleSync(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, data []byte) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("main.go", []byte("package main\n"))
	write("pkg/util.go", []byte("package pkg\n"))
	write("logo.PNG", []byte("not really a png"))
	write("blob.dat", []byte{0xff, 0xfe, 0x00})
	write("notes.md", []byte("# notes\n"))
	if err := os.Mkdir(filepath.Join(root, "dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	lister := tracked.Static{"main.go", "logo.PNG", "pkg/util.go", "missing.go", "blob.dat", "dir", "notes.md"}
	d := newDispatcher(t, Options{Lister: lister, IgnoreExtensions: []string{"md"}})

	out := &recorder{}
	if resp := d.Handle(context.Background(), []byte(encode(t, map[string]string{"type": "SYNC", "destination": root})), out); resp != nil {
		t.Fatalf("sync must not reply, got %+v", resp)
	}

	want := []protocol.FileContent{
		protocol.NewFileContent(filepath.Join(root, "main.go"), "package main\n"),
		protocol.NewFileContent(filepath.Join(root, "pkg", "util.go"), "package pkg\n"),
	}
	if len(out.sent) != len(want) {
		t.Fatalf("sent %d messages, want %d: %+v", len(out.sent), len(want), out.sent)
	}
	for i, w := range want {
		if out.sent[i] != w {
			t.Fatalf("message %d: got %+v want %+v", i, out.sent[i], w)
		}
	}
}

// flakySender fails the sends listed in errs, by call index.
type flakySender struct {
	calls int
	errs  map[int]error
	sent  []any
}

func (s *flakySender) Send(v any) error {
	s.calls++
	if err, ok := s.errs[s.calls]; ok {
		return err
	}
	s.sent = append(s.sent, v)
	return nil
}

func TestSyncStopsWhenPeerLeaves(t *testing.T) {
	root := t.TempDir()
	names := []string{"a.go", "b.go", "c.go", "d.go"}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(root, name), []byte("package x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	d := newDispatcher(t, Options{Lister: tracked.Static(names)})

	out := &flakySender{errs: map[int]error{
		2: errors.New("encode failed"),
		3: io.EOF,
	}}
	if sent := d.emitFiles(context.Background(), root, out); sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if out.calls != 3 {
		t.Fatalf("expected sending to stop after the peer left, got %d attempts", out.calls)
	}
}

type failingLister struct{}

func (failingLister) TrackedFiles(context.Context, string) ([]string, error) {
	return nil, errors.New("not a git repository")
}

func TestHandleSyncListerFailure(t *testing.T) {
	d := newDispatcher(t, Options{Lister: failingLister{}})
	out := &recorder{}
	if resp := d.Handle(context.Background(), []byte(`{"type":"SYNC","destination":"/nowhere"}`), out); resp != nil {
		t.Fatalf("unexpected reply %+v", resp)
	}
	if len(out.sent) != 0 {
		t.Fatalf("expected no messages, got %d", len(out.sent))
	}
}

func TestDenied(t *testing.T) {
	d := newDispatcher(t, Options{IgnoreExtensions: []string{".LOCK"}})
	for path, want := range map[string]bool{
		"a/b.Jpg":        true,
		"dump.sql":       true,
		"archive.tar.gz": true,
		"yarn.lock":      true,
		"main.go":        false,
		"Makefile":       false,
	} {
		if got := d.Denied(path); got != want {
			t.Errorf("Denied(%q) = %v, want %v", path, got, want)
		}
	}
}

func writeFrames(t *testing.T, msgs ...string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	codec := frame.NewPipeCodec(nil, &buf, 0)
	for _, m := range msgs {
		if err := codec.WriteMessage([]byte(m)); err != nil {
			t.Fatal(err)
		}
	}
	return &buf
}

func readReplies(t *testing.T, buf *bytes.Buffer) []protocol.Response {
	t.Helper()
	codec := frame.NewPipeCodec(buf, io.Discard, 0)
	var out []protocol.Response
	for {
		data, err := codec.ReadMessage()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("read reply: %v", err)
		}
		var r protocol.Response
		if err := json.Unmarshal(data, &r); err != nil {
			t.Fatal(err)
		}
		out = append(out, r)
	}
}

func TestServeSequentialReplies(t *testing.T) {
	d := newDispatcher(t, Options{})
	in := writeFrames(t,
		`{"kind":"assistant","content":"one"}`,
		`garbage`,
		`{"kind":"assistant","content":"two"}`,
	)
	var out bytes.Buffer

	if err := d.Serve(context.Background(), frame.NewPipeCodec(in, &out, 0)); err != nil {
		t.Fatalf("serve: %v", err)
	}

	replies := readReplies(t, &out)
	if len(replies) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(replies))
	}
	if replies[0].Content != "one" || replies[1].Message != protocol.MsgInvalidJSON || replies[2].Content != "two" {
		t.Fatalf("unexpected replies %+v", replies)
	}
}

func TestServeFramingError(t *testing.T) {
	d := newDispatcher(t, Options{})
	in := writeFrames(t, `{"kind":"assistant","content":"one"}`)
	in.Write([]byte{1, 2})
	var out bytes.Buffer

	err := d.Serve(context.Background(), frame.NewPipeCodec(in, &out, 0))
	if !errors.Is(err, frame.ErrFraming) {
		t.Fatalf("expected framing error, got %v", err)
	}
	if replies := readReplies(t, &out); len(replies) != 1 {
		t.Fatalf("expected the first reply before the failure, got %d", len(replies))
	}
}
