package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// GenesisHash is the HashPrev value of the first event in a chain.
const GenesisHash = "sha256:genesis"

// HashPrefix identifies the digest algorithm used in Event.Hash.
const HashPrefix = "sha256:"

// FileWriter appends audit events to a newline-delimited JSON file,
// fsyncing after every write and chaining each event's hash to the one
// before it.
type FileWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	lastHash string
	closed   bool
}

var _ Writer = (*FileWriter)(nil)

// NewFileWriter opens (or creates) the audit log at path and reads the
// last event's hash, if any, so the chain continues correctly across
// process restarts.
func NewFileWriter(path string) (*FileWriter, error) {
	lastHash := GenesisHash
	if existing, err := os.ReadFile(path); err == nil {
		text := strings.TrimSpace(string(existing))
		if text != "" {
			lines := strings.Split(text, "\n")
			var last Event
			if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err == nil && last.Hash != "" {
				lastHash = last.Hash
			}
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &FileWriter{path: path, file: f, lastHash: lastHash}, nil
}

// Path returns the audit log file path.
func (w *FileWriter) Path() string { return w.path }

func (w *FileWriter) Write(event *Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("audit: write to closed file writer")
	}

	event.HashPrev = w.lastHash
	hash, err := hashEvent(event)
	if err != nil {
		return fmt.Errorf("audit: hash event: %w", err)
	}
	event.Hash = hash

	if err := event.Validate(); err != nil {
		return fmt.Errorf("audit: invalid event: %w", err)
	}

	line, err := event.JSON()
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	line = append(line, '\n')

	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync event: %w", err)
	}

	w.lastHash = event.Hash
	return nil
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

func (w *FileWriter) LastHash() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash
}

func hashEvent(event *Event) (string, error) {
	canonical, err := event.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return HashPrefix + hex.EncodeToString(sum[:]), nil
}

// VerifyChain reads the audit log at path and verifies that every
// event's hash matches its content and that the hash chain is
// unbroken. It returns the number of events verified before the first
// failure (or the total count if the log is intact).
func VerifyChain(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("audit: open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	prevHash := GenesisHash
	count := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(text), &event); err != nil {
			return count, fmt.Errorf("audit: line %d: invalid JSON: %w", line, err)
		}

		if event.HashPrev != prevHash {
			return count, fmt.Errorf("audit: line %d: hash chain broken", line)
		}

		wantHash, err := hashEvent(&event)
		if err != nil {
			return count, fmt.Errorf("audit: line %d: %w", line, err)
		}
		if wantHash != event.Hash {
			return count, fmt.Errorf("audit: line %d: hash mismatch, log may be tampered", line)
		}

		count++
		prevHash = event.Hash
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("audit: scan log: %w", err)
	}

	return count, nil
}
