package service

import (
	"testing"

	"github.com/comandas/backend/internal/parser"
)

func TestIssuesText(t *testing.T) {
	issues := []parser.Issue{
		{Level: parser.LevelError, Message: parser.MsgClientWithoutName, LineNo: 3},
		{Level: parser.LevelWarning, Message: parser.MsgMisformattedLine, LineNo: 7},
	}
	got := issuesText(issues)
	want := "ERROR: client without name (line 3); WARNING: misformatted line (line 7)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestIssuesTextNoLineNumber(t *testing.T) {
	issues := []parser.Issue{{Level: parser.LevelWarning, Message: parser.MsgClientWithoutProducts}}
	if got := issuesText(issues); got != "WARNING: client without products" {
		t.Fatalf("got %q", got)
	}
}

func TestIssuesTextEmpty(t *testing.T) {
	if got := issuesText(nil); got != "body yielded no clients" {
		t.Fatalf("got %q", got)
	}
}
