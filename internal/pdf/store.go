package pdf

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes rendered PDFs under a directory and hands back the
// reference stored on the print job. PublicURL maps a reference to the URL
// clients download from.
type FileStore struct {
	Dir     string
	BaseURL string
}

func (f FileStore) Save(jobID string, data []byte) (string, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", err
	}
	ref := jobID + ".pdf"
	if err := os.WriteFile(filepath.Join(f.Dir, ref), data, 0o644); err != nil {
		return "", err
	}
	return ref, nil
}

func (f FileStore) PublicURL(ref string) string {
	return fmt.Sprintf("%s/%s", f.BaseURL, ref)
}

func (f FileStore) Path(ref string) string {
	return filepath.Join(f.Dir, ref)
}
