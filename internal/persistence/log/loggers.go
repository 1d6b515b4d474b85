package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"metaleague.ai/internal/sim/match"
)

// JSONLZstdWriter appends JSON lines to hourly rotated zstd files named <prefix>-YYYY-MM-DD-HH.jsonl.zst.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// MatchDir is the directory holding one match's manifest and round log.
func MatchDir(dataDir, matchID string) string {
	return filepath.Join(dataDir, "matches", matchID)
}

// RoundLogger writes one JSONL entry per round (compressed). It is a match.Sink; the first write
// error is kept and reported by Err and Close.
type RoundLogger struct {
	w   *JSONLZstdWriter
	err error
}

func NewRoundLogger(matchDir string) *RoundLogger {
	return &RoundLogger{w: NewJSONLZstdWriter(matchDir, "rounds")}
}

func (l *RoundLogger) Round(e match.RoundLogEntry) {
	if err := l.w.Write(e); err != nil && l.err == nil {
		l.err = fmt.Errorf("round %d: %w", e.Round, err)
	}
}

func (l *RoundLogger) Err() error { return l.err }

func (l *RoundLogger) Close() error {
	if err := l.w.Close(); err != nil {
		return err
	}
	return l.err
}

// ResultLogger writes one JSONL entry per finished match (compressed).
type ResultLogger struct{ w *JSONLZstdWriter }

func NewResultLogger(dataDir string) *ResultLogger {
	return &ResultLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "results"), "results")}
}

func (l *ResultLogger) WriteResult(r *match.MatchResult) error { return l.w.Write(r) }
func (l *ResultLogger) Close() error                          { return l.w.Close() }

// ListFiles returns dir's <prefix>-*.jsonl.zst files in name (and therefore time) order.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadLines decodes a .jsonl.zst file and calls fn for each line.
func ReadLines(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return sc.Err()
}

// ReadRounds returns every round entry logged under matchDir in order.
func ReadRounds(matchDir string) ([]match.RoundLogEntry, error) {
	files, err := ListFiles(matchDir, "rounds")
	if err != nil {
		return nil, err
	}
	var out []match.RoundLogEntry
	for _, path := range files {
		err := ReadLines(path, func(line []byte) error {
			var e match.RoundLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
