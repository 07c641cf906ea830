package imap

import "testing"

func TestReadBodyMissingSection(t *testing.T) {
	if _, err := readBody(nil); err == nil {
		t.Fatalf("a message without a body section must error")
	}
}

func TestAfterHeadersCRLF(t *testing.T) {
	raw := "Subject: RUTA NORTE\r\nFrom: a@b\r\n\r\nCliente: Bar Pepe\r\n2 uds - Pan - 1.50\r\n"
	got := afterHeaders(raw)
	want := "Cliente: Bar Pepe\r\n2 uds - Pan - 1.50\r\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestAfterHeadersLF(t *testing.T) {
	raw := "Subject: x\n\nbody here"
	if got := afterHeaders(raw); got != "body here" {
		t.Fatalf("got %q", got)
	}
}

func TestAfterHeadersNoBlankLine(t *testing.T) {
	raw := "no headers at all"
	if got := afterHeaders(raw); got != raw {
		t.Fatalf("got %q", got)
	}
}

func TestAfterHeadersBodyWithBlankLines(t *testing.T) {
	raw := "H: v\r\n\r\nfirst\r\n\r\nsecond"
	if got := afterHeaders(raw); got != "first\r\n\r\nsecond" {
		t.Fatalf("only the header separator is consumed, got %q", got)
	}
}
