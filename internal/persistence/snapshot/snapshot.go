// Package snapshot persists the cross-match ledgers (injuries, banked stamina, morale) between matchdays.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/model"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	League  string `json:"league"`
	Day     int    `json:"day"`
}

type LedgerV1 struct {
	Header Header `json:"header"`

	Injuries   []model.InjuryRecord `json:"injuries"`
	Characters []CharacterV1        `json:"characters"`
}

type CharacterV1 struct {
	ID      string  `json:"id"`
	Stamina float64 `json:"stamina"`
	Morale  float64 `json:"morale"`
}

// Capture records book and the banked vitals of chars, sorted by character id.
func Capture(league string, day int, book *ledger.InjuryBook, chars []*model.Character) LedgerV1 {
	snap := LedgerV1{
		Header:   Header{Version: Version, League: league, Day: day},
		Injuries: book.Records(),
	}
	for _, c := range chars {
		snap.Characters = append(snap.Characters, CharacterV1{ID: c.ID, Stamina: c.Stamina, Morale: c.Morale})
	}
	sort.Slice(snap.Characters, func(i, j int) bool { return snap.Characters[i].ID < snap.Characters[j].ID })
	return snap
}

// CaptureCarryover is Capture for vitals already banked as carryover. Entries missing either
// value are skipped.
func CaptureCarryover(league string, day int, book *ledger.InjuryBook, carry map[string]ledger.Carryover) LedgerV1 {
	snap := Capture(league, day, book, nil)
	for id, co := range carry {
		if co.Stamina == nil || co.Morale == nil {
			continue
		}
		snap.Characters = append(snap.Characters, CharacterV1{ID: id, Stamina: *co.Stamina, Morale: *co.Morale})
	}
	sort.Slice(snap.Characters, func(i, j int) bool { return snap.Characters[i].ID < snap.Characters[j].ID })
	return snap
}

// Restore rebuilds the injury book and per-character carryover.
func (s LedgerV1) Restore() (*ledger.InjuryBook, map[string]ledger.Carryover) {
	book := ledger.NewInjuryBook()
	for _, rec := range s.Injuries {
		book.Put(rec)
	}
	carry := make(map[string]ledger.Carryover, len(s.Characters))
	for _, c := range s.Characters {
		st, mo := c.Stamina, c.Morale
		carry[c.ID] = ledger.Carryover{Stamina: &st, Morale: &mo}
	}
	return book, carry
}

func WriteLedger(path string, snap LedgerV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadLedger(path string) (LedgerV1, error) {
	var snap LedgerV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
