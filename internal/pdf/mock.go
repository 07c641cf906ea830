package pdf

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// MockRenderer produces a minimal self-contained PDF so the pipeline works
// without the external render service.
type MockRenderer struct{}

func (m MockRenderer) RenderComanda(_ context.Context, c Comanda) ([]byte, int64, error) {
	start := time.Now()

	var text bytes.Buffer
	fmt.Fprintf(&text, "%s %s %s %s", c.Kind, c.RouteName, c.ShiftDate, c.ShiftSlot)
	if c.OperatorID != "" {
		fmt.Fprintf(&text, " %s", c.OperatorID)
	}
	for _, cl := range c.Clients {
		fmt.Fprintf(&text, " | %s:", cl.Name)
		for _, l := range cl.Lines {
			fmt.Fprintf(&text, " %s %s %s;", l.Quantity, l.Unit, l.Product)
		}
	}

	content := fmt.Sprintf("BT /F1 10 Tf 40 780 Td (%s) Tj ET", escape(text.String()))

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, 0, 5)
	writeObj := func(body string) {
		offsets = append(offsets, out.Len())
		out.WriteString(body)
	}
	writeObj("1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n")
	writeObj("2 0 obj << /Type /Pages /Kids [3 0 R] /Count 1 >> endobj\n")
	writeObj("3 0 obj << /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >> endobj\n")
	writeObj(fmt.Sprintf("4 0 obj << /Length %d >> stream\n%s\nendstream endobj\n", len(content), content))
	writeObj("5 0 obj << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> endobj\n")

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer << /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return out.Bytes(), time.Since(start).Milliseconds(), nil
}

func escape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			if r < 128 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
