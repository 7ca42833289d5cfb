package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeCommands(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{
			name: "sync",
			in:   `{"type":"SYNC","destination":"proj"}`,
			want: Sync{Destination: "proj"},
		},
		{
			name: "snippet",
			in:   `{"kind":"snippet","filePath":"src/app","content":"x","id":"abc"}`,
			want: Snippet{ID: "abc", FilePath: "src/app", Content: "x"},
		},
		{
			name: "snippet numeric id",
			in:   `{"kind":"snippet","filePath":"a","content":"x","id":42}`,
			want: Snippet{ID: "42", FilePath: "a", Content: "x"},
		},
		{
			name: "snippet missing content still decodes",
			in:   `{"kind":"snippet","filePath":"a","id":"abc"}`,
			want: Snippet{ID: "abc", FilePath: "a"},
		},
		{
			name: "assistant without id",
			in:   `{"kind":"assistant","content":"hello"}`,
			want: AssistantMessage{Content: "hello"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %#v want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeSnippetOverwrite(t *testing.T) {
	cmd, err := Decode([]byte(`{"kind":"snippet","filePath":"a","content":"x","id":"1","overwrite":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	snippet := cmd.(Snippet)
	if snippet.Overwrite == nil || !*snippet.Overwrite {
		t.Fatalf("expected overwrite=true, got %v", snippet.Overwrite)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		kind    error
		message string
		id      *string
	}{
		{"invalid json", `{"kind":`, ErrMalformedInput, MsgInvalidJSON, nil},
		{"invalid utf8", "{\"kind\":\"snippet\xff\"}", ErrMalformedInput, MsgInvalidJSON, nil},
		{"content not a string", `{"kind":"snippet","id":"abc","filePath":"a","content":5}`, ErrMalformedInput, MsgInvalidFormat, strPtr("abc")},
		{"file path not a string", `{"kind":"assistant","filePath":["a"],"content":"x"}`, ErrMalformedInput, MsgInvalidFormat, nil},
		{"sync without destination", `{"type":"SYNC"}`, ErrMissingField, MsgMissingDestination, nil},
		{"snippet without id", `{"kind":"snippet","filePath":"a","content":"x"}`, ErrMissingField, MsgMissingSnippetID, nil},
		{"snippet null id", `{"kind":"snippet","id":null}`, ErrMissingField, MsgMissingSnippetID, nil},
		{"snippet empty id", `{"kind":"snippet","id":""}`, ErrMissingField, MsgMissingSnippetID, strPtr("")},
		{"unknown kind", `{"kind":"image"}`, ErrUnknownCommand, MsgUnknownType, nil},
		{"no kind", `{}`, ErrUnknownCommand, MsgUnknownType, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if perr.Message != tt.message {
				t.Fatalf("message = %q, want %q", perr.Message, tt.message)
			}
			if (perr.ID == nil) != (tt.id == nil) || (perr.ID != nil && *perr.ID != *tt.id) {
				t.Fatalf("id = %v, want %v", perr.ID, tt.id)
			}
		})
	}
}

func TestMalformedResponseHasNoID(t *testing.T) {
	_, err := Decode([]byte("not json"))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	data, err := Encode(perr.Response())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields["status"] != StatusError || fields["message"] != MsgInvalidJSON {
		t.Fatalf("unexpected envelope: %s", data)
	}
	if _, ok := fields["id"]; ok {
		t.Fatalf("id key must be absent: %s", data)
	}
}

func TestFileContentShape(t *testing.T) {
	data, err := Encode(NewFileContent("proj/main.go", "package main\n"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"type":"FILE_CONTENT","filePath":"proj/main.go","content":"package main\n"}`
	if string(data) != want {
		t.Fatalf("got %s want %s", data, want)
	}
}

func strPtr(s string) *string { return &s }

func TestEncodeCommand(t *testing.T) {
	yes := true
	tests := []struct {
		cmd  Command
		want string
	}{
		{Sync{Destination: "/src"}, `{"type":"SYNC","destination":"/src"}`},
		{Snippet{ID: "1", FilePath: "a.py", Content: "x", Overwrite: &yes}, `{"kind":"snippet","id":"1","filePath":"a.py","content":"x","overwrite":true}`},
		{AssistantMessage{Content: "hi"}, `{"kind":"assistant","content":"hi"}`},
	}
	for _, tt := range tests {
		data, err := EncodeCommand(tt.cmd)
		if err != nil {
			t.Fatalf("encode %T: %v", tt.cmd, err)
		}
		if string(data) != tt.want {
			t.Errorf("got %s want %s", data, tt.want)
		}
		if _, err := Decode(data); err != nil {
			t.Errorf("decode %s: %v", data, err)
		}
	}
}
