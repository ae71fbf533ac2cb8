// Package journal keeps an append-only CBOR record of transmitted gate
// events so a run can be audited or replayed into a monitor.
package journal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/saaga0h/parking-edge/internal/gate"
)

// Entry is one journaled event
type Entry struct {
	RunID string     `cbor:"1,keyasint"`
	Seq   uint64     `cbor:"2,keyasint"`
	Event gate.Event `cbor:"3,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create journal CBOR encoder mode: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create journal CBOR decoder mode: %v", err))
	}
}

// Writer appends entries to a journal file. Safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	runID   string
	seq     uint64
	closed  bool
}

// Create opens path for appending, creating it if needed
func Create(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Writer{
		file:    f,
		encoder: encMode.NewEncoder(f),
		runID:   runID,
	}, nil
}

// Append writes one event. Appending after Close is a no-op.
func (w *Writer) Append(ev gate.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.seq++
	if err := w.encoder.Encode(Entry{RunID: w.runID, Seq: w.seq, Event: ev}); err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	return nil
}

// Close closes the file. Safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Read decodes every entry from r until EOF
func Read(r io.Reader) ([]Entry, error) {
	dec := decMode.NewDecoder(r)

	var entries []Entry
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, fmt.Errorf("failed to decode journal entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
}

// ReadFile reads a whole journal file
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()
	return Read(f)
}
