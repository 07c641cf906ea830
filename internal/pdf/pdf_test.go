package pdf

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleComanda() Comanda {
	return Comanda{
		JobID:       "job-1",
		Kind:        "OPERATOR_INITIAL",
		RouteName:   "RUTA NORTE",
		ShiftDate:   "2026-02-15",
		ShiftSlot:   "MORNING",
		OperatorID:  "ana",
		GeneratedAt: time.Now().UTC(),
		Clients: []ClientBlock{
			{Name: "Bar Pepe", Lines: []Line{{Quantity: "2", Unit: "uds", Product: "Pan"}}},
		},
	}
}

func TestMockRendererProducesPDF(t *testing.T) {
	data, _, err := MockRenderer{}.RenderComanda(context.Background(), sampleComanda())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.4")) {
		t.Fatalf("output is not a PDF: %q", data[:16])
	}
	if !bytes.Contains(data, []byte("%%EOF")) {
		t.Fatalf("missing trailer")
	}
	if !bytes.Contains(data, []byte("RUTA NORTE")) {
		t.Fatalf("route name not embedded")
	}
}

func TestEscapeParens(t *testing.T) {
	if got := escape("a(b)c\\d"); got != `a\(b\)c\\d` {
		t.Fatalf("got %q", got)
	}
}

func TestFileStoreSaveAndURL(t *testing.T) {
	fs := FileStore{Dir: t.TempDir(), BaseURL: "/pdfs"}
	ref, err := fs.Save("job-1", []byte("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if ref != "job-1.pdf" {
		t.Fatalf("ref %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(fs.Dir, ref))
	if err != nil || string(data) != "%PDF-1.4 test" {
		t.Fatalf("read back: %v %q", err, data)
	}
	if fs.PublicURL(ref) != "/pdfs/job-1.pdf" {
		t.Fatalf("url %q", fs.PublicURL(ref))
	}
}
