package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// HTTPRenderer posts the document to an external render service and returns
// the PDF bytes it produces.
type HTTPRenderer struct {
	BaseURL string
	Client  *http.Client
}

func (h HTTPRenderer) RenderComanda(ctx context.Context, c Comanda) ([]byte, int64, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}

	b, _ := json.Marshal(c)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/render", bytes.NewBuffer(b))
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, time.Since(start).Milliseconds(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, time.Since(start).Milliseconds(), errors.New("pdf render service error")
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Since(start).Milliseconds(), err
	}
	return out, time.Since(start).Milliseconds(), nil
}
