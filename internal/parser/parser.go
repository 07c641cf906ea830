package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/comandas/backend/internal/normalizer"
)

// Warning levels.
const (
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Known body-parse messages.
const (
	MsgClientWithoutName     = "client without name"
	MsgMisformattedLine      = "misformatted line"
	MsgProductLineNoClient   = "product line with no client"
	MsgClientWithoutProducts = "client without products"
)

type ParsedLine struct {
	Quantity   decimal.Decimal
	UnitRaw    string
	ProductRaw string
	Price      decimal.Decimal
}

type ParsedClient struct {
	Name         string
	Observations string
	Lines        []ParsedLine
}

type Issue struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	LineNo  int    `json:"line_no,omitempty"`
}

type BodyResult struct {
	Clients []ParsedClient
	Issues  []Issue
}

// OK reports whether the body parse is usable: at least one client and no
// hard error.
func (r BodyResult) OK() bool {
	if len(r.Clients) == 0 {
		return false
	}
	for _, i := range r.Issues {
		if i.Level == LevelError {
			return false
		}
	}
	return true
}

var (
	clientRe  = regexp.MustCompile(`(?i)^Cliente:\s*(.*)$`)
	obsRe     = regexp.MustCompile(`(?i)^Observaciones:\s*(.*)$`)
	productRe = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)?)\s+(\S.*?)\s*-\s*(.+?)\s*-\s*([0-9]+(?:[.,][0-9]+)?)$`)
	sepRe     = regexp.MustCompile(`^[-=_*]+$`)
)

// ParseSubject resolves the subject against the active routes catalog. The
// returned key is always the normalized subject, matched or not.
func ParseSubject(subject string, routes map[string]struct{}) (string, bool) {
	key := normalizer.Norm(subject)
	_, ok := routes[key]
	return key, ok
}

// ParseBody scans the body top to bottom with a single-client state machine.
func ParseBody(body string) BodyResult {
	var res BodyResult
	var current *ParsedClient
	justOpened := false

	flush := func() {
		if current == nil {
			return
		}
		if len(current.Lines) == 0 {
			res.Issues = append(res.Issues, Issue{Level: LevelWarning, Message: MsgClientWithoutProducts})
		}
		res.Clients = append(res.Clients, *current)
		current = nil
	}

	lines := splitLines(body)
	for no, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := no + 1
		if line == "" {
			continue
		}

		if m := clientRe.FindStringSubmatch(line); m != nil {
			flush()
			name := strings.TrimSpace(m[1])
			if name == "" {
				res.Issues = append(res.Issues, Issue{Level: LevelError, Message: MsgClientWithoutName, LineNo: lineNo})
				justOpened = false
				continue
			}
			current = &ParsedClient{Name: name}
			justOpened = true
			continue
		}

		if m := obsRe.FindStringSubmatch(line); m != nil && current != nil && justOpened {
			current.Observations = strings.TrimSpace(m[1])
			justOpened = false
			continue
		}
		justOpened = false

		if m := productRe.FindStringSubmatch(line); m != nil {
			qty, err1 := parseDecimal(m[1])
			price, err2 := parseDecimal(m[4])
			if err1 != nil || err2 != nil {
				res.Issues = append(res.Issues, Issue{Level: LevelWarning, Message: MsgMisformattedLine, LineNo: lineNo})
				continue
			}
			if current == nil {
				res.Issues = append(res.Issues, Issue{Level: LevelWarning, Message: MsgProductLineNoClient, LineNo: lineNo})
				continue
			}
			current.Lines = append(current.Lines, ParsedLine{
				Quantity:   qty,
				UnitRaw:    strings.TrimSpace(m[2]),
				ProductRaw: strings.TrimSpace(m[3]),
				Price:      price,
			})
			continue
		}

		if sepRe.MatchString(line) {
			continue
		}
		if current != nil {
			res.Issues = append(res.Issues, Issue{Level: LevelWarning, Message: MsgMisformattedLine, LineNo: lineNo})
		}
	}
	flush()
	return res
}

func splitLines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\r", "\n")
	return strings.Split(body, "\n")
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
}
