package journal

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FileWriter appends journal records to a file in CBOR format.
// It is safe for concurrent use from multiple goroutines.
type FileWriter struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileWriter creates a FileWriter that appends to the specified path.
// The file is created with permissions 0644 if it doesn't exist.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileWriter{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Write appends one record to the file.
func (w *FileWriter) Write(r Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	// Ignore encoding errors - diagnostics must not disrupt the application
	_ = w.encoder.Encode(r)
}

// Close closes the underlying file. Safe to call multiple times; Write calls
// after Close are silently ignored.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Export writes all currently retained records of j to path, appending if the
// file already exists.
func Export(j *Journal, path string) error {
	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, r := range j.Recent(0) {
		w.Write(r)
	}
	return w.Close()
}

// Filter specifies criteria for filtering journal records.
// Zero/nil fields match all records for that criterion.
type Filter struct {
	// Type filters by record type.
	Type *RecordType

	// Token filters by exact token match.
	Token string

	// TimeStart filters records at or after this time.
	TimeStart *time.Time

	// TimeEnd filters records before this time.
	TimeEnd *time.Time
}

// matches returns true if the record matches all filter criteria.
func (f *Filter) matches(r Record) bool {
	if f.Type != nil && r.Type != *f.Type {
		return false
	}
	if f.Token != "" && r.Token != f.Token {
		return false
	}
	if f.TimeStart != nil && r.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !r.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader reads journal records from a CBOR-encoded file.
// It provides an iterator interface for streaming large files.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader creates a Reader that reads all records from the specified file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads records matching the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}, nil
}

// Next returns the next record that matches the filter.
// Returns io.EOF when no more records are available.
func (r *Reader) Next() (Record, error) {
	for {
		var rec Record
		if err := r.decoder.Decode(&rec); err != nil {
			if err == io.EOF {
				return Record{}, io.EOF
			}
			return Record{}, err
		}

		if r.filter.matches(rec) {
			return rec, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
