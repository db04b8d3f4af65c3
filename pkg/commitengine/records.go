package commitengine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/modelsilo/silo/pkg/models"
)

// Record keys of the NDJSON commit payload.
const (
	recordHeader  = "header"
	recordFile    = "file"
	recordLFSFile = "lfsFile"
	recordDeleted = "deleted"
	recordCopy    = "copy"
)

// maxRecordBytes bounds a single NDJSON line. Inline file bytes ride
// inside records, so the bound sits above any sane inline threshold.
const maxRecordBytes = 64 * 1024 * 1024

// record is one tagged line of the commit payload.
type record struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// headerRecord opens every commit payload.
type headerRecord struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
}

// fileRecord carries inline bytes.
type fileRecord struct {
	Path    string `json:"path"`
	Content string `json:"content"` // base64
	// Encoding is accepted for wire compatibility; only base64 payloads
	// are produced by clients.
	Encoding string `json:"encoding,omitempty"`
}

// lfsFileRecord references an externally uploaded blob.
type lfsFileRecord struct {
	Path string `json:"path"`
	Algo string `json:"algo"`
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// deletedRecord removes a path.
type deletedRecord struct {
	Path string `json:"path"`
}

// copyRecord re-links existing content at a new path.
type copyRecord struct {
	FromPath     string `json:"from_path"`
	FromRevision string `json:"from_revision,omitempty"`
	ToPath       string `json:"to_path"`
}

// recordReader yields commit payload records one line at a time,
// never materialising the whole request.
type recordReader struct {
	scanner *bufio.Scanner
}

// newRecordReader wraps a request body.
func newRecordReader(r io.Reader) *recordReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordBytes)
	return &recordReader{scanner: scanner}
}

// next returns the next record, io.EOF at the end of the stream, or
// ErrMalformedPayload for lines that do not parse.
func (r *recordReader) next() (*record, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
		}
		if rec.Key == "" {
			return nil, fmt.Errorf("%w: record without key", models.ErrMalformedPayload)
		}
		return &rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	return nil, io.EOF
}

// decodeValue unmarshals a record value into its typed form.
func decodeValue(rec *record, out any) error {
	if err := json.Unmarshal(rec.Value, out); err != nil {
		return fmt.Errorf("%w: bad %s record: %v", models.ErrMalformedPayload, rec.Key, err)
	}
	return nil
}
