package parser

import (
	"testing"
)

func routeSet(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

func TestParseSubject(t *testing.T) {
	routes := routeSet("RUTA NORTE", "RUTA SUR")

	key, ok := ParseSubject("Ruta Norte", routes)
	if !ok || key != "RUTA NORTE" {
		t.Fatalf("expected RUTA NORTE match, got %q ok=%v", key, ok)
	}

	key, ok = ParseSubject("Ruta Oeste", routes)
	if ok {
		t.Fatalf("expected no match for unknown route")
	}
	if key != "RUTA OESTE" {
		t.Fatalf("normalized key must be returned on failure, got %q", key)
	}
}

func TestParseBodyHappyPath(t *testing.T) {
	body := "Cliente: Super Uno\nObservaciones: entregar temprano\n1 L - Leche - 1.20\n2,5 kg - Azúcar - 3,10\n"
	res := ParseBody(body)
	if !res.OK() {
		t.Fatalf("expected OK parse, issues: %+v", res.Issues)
	}
	if len(res.Clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(res.Clients))
	}
	c := res.Clients[0]
	if c.Name != "Super Uno" || c.Observations != "entregar temprano" {
		t.Fatalf("client fields wrong: %+v", c)
	}
	if len(c.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(c.Lines))
	}
	if c.Lines[0].UnitRaw != "L" || c.Lines[0].ProductRaw != "Leche" {
		t.Fatalf("line 0 wrong: %+v", c.Lines[0])
	}
	if c.Lines[0].Quantity.String() != "1" || c.Lines[0].Price.String() != "1.20" {
		t.Fatalf("line 0 decimals wrong: %+v", c.Lines[0])
	}
	if c.Lines[1].Quantity.String() != "2.5" || c.Lines[1].Price.String() != "3.10" {
		t.Fatalf("comma decimals not accepted: %+v", c.Lines[1])
	}
}

func TestParseBodyMultipleClients(t *testing.T) {
	body := "Cliente: Uno\n1 ud - Pan - 0.50\nCliente: Dos\n3 ud - Agua - 1.00\n"
	res := ParseBody(body)
	if len(res.Clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(res.Clients))
	}
	if len(res.Clients[0].Lines) != 1 || len(res.Clients[1].Lines) != 1 {
		t.Fatalf("lines misattributed: %+v", res.Clients)
	}
}

func TestParseBodyClientWithoutName(t *testing.T) {
	res := ParseBody("Cliente:\n1 ud - Pan - 0.50\n")
	if res.OK() {
		t.Fatalf("client without name must fail the parse")
	}
	found := false
	for _, i := range res.Issues {
		if i.Level == LevelError && i.Message == MsgClientWithoutName {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %q error, got %+v", MsgClientWithoutName, res.Issues)
	}
}

func TestParseBodyWarnings(t *testing.T) {
	body := "1 ud - Pan - 0.50\nCliente: Uno\nbasura sin formato\nCliente: Vacio\n"
	res := ParseBody(body)

	var orphan, misformatted, empty bool
	for _, i := range res.Issues {
		switch i.Message {
		case MsgProductLineNoClient:
			orphan = true
		case MsgMisformattedLine:
			misformatted = true
		case MsgClientWithoutProducts:
			empty = true
		}
		if i.Level != LevelWarning {
			t.Fatalf("expected warnings only, got %+v", i)
		}
	}
	if !orphan || !misformatted || !empty {
		t.Fatalf("missing warnings: %+v", res.Issues)
	}
	// Clients with zero lines are retained.
	if len(res.Clients) != 2 {
		t.Fatalf("expected both clients retained, got %d", len(res.Clients))
	}
	if res.Clients[1].Name != "Vacio" || len(res.Clients[1].Lines) != 0 {
		t.Fatalf("empty client not retained: %+v", res.Clients[1])
	}
}

func TestParseBodyCRLFAndSeparators(t *testing.T) {
	body := "Cliente: Uno\r\n----\r\n1 ud - Pan - 0.50\r\n"
	res := ParseBody(body)
	if !res.OK() || len(res.Clients) != 1 || len(res.Clients[0].Lines) != 1 {
		t.Fatalf("CRLF/separator handling broken: %+v", res)
	}
	if len(res.Issues) != 0 {
		t.Fatalf("separator lines must not warn: %+v", res.Issues)
	}
}

func TestParseBodyNoClients(t *testing.T) {
	if res := ParseBody("nothing here\n"); res.OK() {
		t.Fatalf("body with no clients must not be OK")
	}
}
