package main

import (
	"bytes"
	"strings"
	"testing"

	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

func TestParseOptions(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr string
		check   func(t *testing.T, o options)
	}{
		{
			name: "single type",
			args: []string{"--type=SEND_EMAIL"},
			check: func(t *testing.T, o options) {
				if o.messageType != types.MessageTypeSendEmail || o.all {
					t.Errorf("opts = %+v", o)
				}
			},
		},
		{
			name: "all",
			args: []string{"--all"},
			check: func(t *testing.T, o options) {
				if !o.all {
					t.Error("expected all")
				}
			},
		},
		{
			name: "mark processable with ids",
			args: []string{"--type=MAKE_PAYMENT", "--mark-processable", "--ids=a, b,,c"},
			check: func(t *testing.T, o options) {
				if !o.markProcessable || strings.Join(o.ids, "|") != "a|b|c" {
					t.Errorf("opts = %+v", o)
				}
			},
		},
		{name: "list needs nothing else", args: []string{"--list"}},
		{name: "unknown type", args: []string{"--type=NOPE"}, wantErr: "unknown message type"},
		{name: "all and type", args: []string{"--all", "--type=SEND_TEXT"}, wantErr: "mutually exclusive"},
		{name: "mark without type", args: []string{"--mark-processable"}, wantErr: "requires --type"},
		{name: "nothing", args: nil, wantErr: "usage"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer
			o, err := parseOptions(tc.args, &stderr)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, o)
			}
		})
	}
}

func TestPrintResults_SortedByType(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, map[types.MessageType]messaging.DrainResult{
		types.MessageTypeSendText:  {Found: 1, Completed: 1},
		types.MessageTypeSendEmail: {Found: 2, Failed: 2},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[1], "SEND_EMAIL") || !strings.HasPrefix(lines[2], "SEND_TEXT") {
		t.Errorf("unexpected order: %q", lines)
	}
}

func TestPrintPending_ListsEveryType(t *testing.T) {
	var buf bytes.Buffer
	printPending(&buf, map[types.MessageType]int{types.MessageTypeReportClaim: 3})

	out := buf.String()
	for _, mt := range types.AllMessageTypes() {
		if !strings.Contains(out, string(mt)) {
			t.Errorf("missing %s", mt)
		}
	}
	if !strings.Contains(out, "3") {
		t.Error("missing count")
	}
}
