// Package ledger appends successful deployments to a JSON Lines file.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Bidon15/autodeploy/internal/orchestrator"
	"github.com/Bidon15/autodeploy/internal/registry"
)

// maxLineSize bounds a single ledger line when reading.
const maxLineSize = 1 << 20

// Record is one deployed contract.
type Record struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Round       int       `json:"round"`
	Network     string    `json:"network"`
	ChainID     uint64    `json:"chain_id,omitempty"`
	Credential  string    `json:"credential"`
	TokenName   string    `json:"token_name"`
	TokenSymbol string    `json:"token_symbol"`
	TokenSupply int64     `json:"token_supply"`
	Address     string    `json:"address"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	DeployedAt  time.Time `json:"deployed_at"`
	DurationMS  int64     `json:"duration_ms"`
}

// Writer is an orchestrator.Observer that records successful attempts.
// Write failures are logged and do not stop the run.
type Writer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
	logger *slog.Logger
	count  int
}

var _ orchestrator.Observer = (*Writer)(nil)

// New creates a Writer over w.
func New(w io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		enc:    json.NewEncoder(w),
		logger: logger,
	}
}

// Open appends to the ledger file at path, creating it and its directory.
func Open(path string, logger *slog.Logger) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	w := New(f, logger)
	w.closer = f
	return w, nil
}

// Count returns how many records were written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying file, if the Writer owns one.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// RoundStarted implements orchestrator.Observer.
func (w *Writer) RoundStarted(int, registry.RoundState) {}

// RoundFinished implements orchestrator.Observer.
func (w *Writer) RoundFinished(int, registry.RoundState) {}

// AttemptFinished writes a record for successful attempts.
func (w *Writer) AttemptFinished(a orchestrator.Attempt) {
	if a.Outcome != registry.OutcomeSuccess {
		return
	}

	rec := NewRecord(a)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		w.logger.Error("failed to write ledger record",
			slog.String("network", rec.Network),
			slog.String("address", rec.Address),
			slog.String("error", err.Error()),
		)
		return
	}
	w.count++
}

// NewRecord converts a successful attempt into a ledger record.
func NewRecord(a orchestrator.Attempt) Record {
	return Record{
		ID:          ulid.Make().String(),
		RunID:       a.RunID.String(),
		Round:       a.Round,
		Network:     a.Pair.Network.Name,
		ChainID:     a.Pair.Network.ChainID,
		Credential:  a.Pair.Credential.Redacted(),
		TokenName:   a.Token.Name,
		TokenSymbol: a.Token.Symbol,
		TokenSupply: a.Token.Supply,
		Address:     a.Address.Hex(),
		ExplorerURL: a.ExplorerURL,
		DeployedAt:  a.StartedAt.Add(a.Duration).UTC(),
		DurationMS:  a.Duration.Milliseconds(),
	}
}

// ReadAll decodes every record from a JSON Lines stream. Blank lines are skipped.
func ReadAll(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []Record
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return records, nil
}

// ReadFile reads the ledger at path. A missing file yields no records.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()
	return ReadAll(f)
}

// Filter returns the records of one run; an empty runID keeps everything.
func Filter(records []Record, runID string) []Record {
	if runID == "" {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out
}
