// Package indexdb is the SQLite store for the cross-match ledgers and a queryable index of
// finished matches and their rounds.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"metaleague.ai/internal/sim/catalogs"
	"metaleague.ai/internal/sim/match"
	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/model"
	"metaleague.ai/internal/sim/tuning"
)

var _ ledger.Store = (*SQLiteIndex)(nil)

// SQLiteIndex implements ledger.Store synchronously. Round and match rows are indexed
// asynchronously by a single writer goroutine and dropped when it falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRound atomic.Uint64
	dropMatch atomic.Uint64
}

type QueueStats struct {
	DropRoundTotal uint64 `json:"drop_round_total"`
	DropMatchTotal uint64 `json:"drop_match_total"`
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
}

type reqKind int

const (
	reqRound reqKind = iota + 1
	reqMatch
)

type req struct {
	kind reqKind

	round  match.RoundLogEntry
	result *match.MatchResult
	at     string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS injuries (
			character_id TEXT PRIMARY KEY,
			severity TEXT NOT NULL,
			matches_remaining INTEGER NOT NULL,
			penalties_json TEXT NOT NULL,
			cause TEXT,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS vitals (
			character_id TEXT PRIMARY KEY,
			stamina REAL,
			morale REAL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			day INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			team_a TEXT NOT NULL,
			team_b TEXT NOT NULL,
			winner TEXT NOT NULL,
			rounds INTEGER NOT NULL,
			end_reason TEXT NOT NULL,
			convergences INTEGER NOT NULL,
			final_digest TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_day ON matches(day);`,
		`CREATE TABLE IF NOT EXISTS character_results (
			match_id TEXT NOT NULL,
			character_id TEXT NOT NULL,
			team TEXT NOT NULL,
			result TEXT NOT NULL,
			final_hp REAL NOT NULL,
			final_stamina REAL NOT NULL,
			is_ko INTEGER NOT NULL,
			is_dead INTEGER NOT NULL,
			PRIMARY KEY (match_id, character_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_character_results_character ON character_results(character_id);`,
		`CREATE TABLE IF NOT EXISTS rounds (
			match_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			digest TEXT NOT NULL,
			moves INTEGER NOT NULL,
			convergences INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (match_id, round)
		);`,
		`CREATE TABLE IF NOT EXISTS convergences (
			match_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			square TEXT NOT NULL,
			winner TEXT NOT NULL,
			roll_a REAL NOT NULL,
			roll_b REAL NOT NULL,
			base_damage INTEGER NOT NULL,
			per_loser INTEGER NOT NULL,
			PRIMARY KEY (match_id, round, seq)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		DropRoundTotal: s.dropRound.Load(),
		DropMatchTotal: s.dropMatch.Load(),
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
	}
}

// Round queues a round row. It makes the index usable as a match.Sink.
func (s *SQLiteIndex) Round(entry match.RoundLogEntry) { _ = s.WriteRound(entry) }

func (s *SQLiteIndex) WriteRound(entry match.RoundLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqRound, round: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropRound.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordMatch(r *match.MatchResult) {
	if s == nil || s.closed.Load() || r == nil {
		return
	}
	select {
	case s.ch <- req{kind: reqMatch, result: r, at: time.Now().UTC().Format(time.RFC3339Nano)}:
	default:
		s.dropMatch.Add(1)
	}
}

// UpsertCatalogs records the trait catalog and the tuning actually applied.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" && cats != nil {
		if b, err := os.ReadFile(filepath.Join(configDir, "traits.json")); err == nil {
			rows = append(rows, kv{name: "traits", digest: cats.Traits.Digest, json: b})
		}
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) LoadInjury(ctx context.Context, characterID string) (model.InjuryRecord, bool, error) {
	var (
		rec       model.InjuryRecord
		penalties string
		cause     sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT character_id, severity, matches_remaining, penalties_json, cause FROM injuries WHERE character_id = ?`,
		characterID,
	).Scan(&rec.CharacterID, &rec.Severity, &rec.MatchesRemaining, &penalties, &cause)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InjuryRecord{}, false, nil
	}
	if err != nil {
		return model.InjuryRecord{}, false, err
	}
	if err := json.Unmarshal([]byte(penalties), &rec.Penalties); err != nil {
		return model.InjuryRecord{}, false, fmt.Errorf("injury %s: penalties: %w", characterID, err)
	}
	rec.Cause = cause.String
	return rec, true, nil
}

func (s *SQLiteIndex) SaveInjury(ctx context.Context, rec model.InjuryRecord) error {
	penalties, err := json.Marshal(rec.Penalties)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO injuries (character_id, severity, matches_remaining, penalties_json, cause, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (character_id) DO UPDATE
SET
    severity = excluded.severity,
    matches_remaining = excluded.matches_remaining,
    penalties_json = excluded.penalties_json,
    cause = excluded.cause,
    updated_at = excluded.updated_at
`, rec.CharacterID, string(rec.Severity), rec.MatchesRemaining, string(penalties), rec.Cause, nowText())
	return err
}

func (s *SQLiteIndex) DeleteInjury(ctx context.Context, characterID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM injuries WHERE character_id = ?`, characterID)
	return err
}

func (s *SQLiteIndex) LoadStamina(ctx context.Context, characterID string) (float64, bool, error) {
	return s.loadVital(ctx, "stamina", characterID)
}

func (s *SQLiteIndex) SaveStamina(ctx context.Context, characterID string, stamina float64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO vitals (character_id, stamina, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (character_id) DO UPDATE
SET stamina = excluded.stamina, updated_at = excluded.updated_at
`, characterID, stamina, nowText())
	return err
}

func (s *SQLiteIndex) LoadMorale(ctx context.Context, characterID string) (float64, bool, error) {
	return s.loadVital(ctx, "morale", characterID)
}

func (s *SQLiteIndex) SaveMorale(ctx context.Context, characterID string, morale float64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO vitals (character_id, morale, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (character_id) DO UPDATE
SET morale = excluded.morale, updated_at = excluded.updated_at
`, characterID, morale, nowText())
	return err
}

// loadVital reads one nullable vitals column. column is one of the two fixed names above.
func (s *SQLiteIndex) loadVital(ctx context.Context, column, characterID string) (float64, bool, error) {
	var v sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT `+column+` FROM vitals WHERE character_id = ?`, characterID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return v.Float64, v.Valid, nil
}

func nowText() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRound, _ := s.db.Prepare(`INSERT OR REPLACE INTO rounds(match_id,round,digest,moves,convergences,raw_json) VALUES(?,?,?,?,?,?)`)
	insertConv, _ := s.db.Prepare(`INSERT OR REPLACE INTO convergences(match_id,round,seq,square,winner,roll_a,roll_b,base_damage,per_loser) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertMatch, _ := s.db.Prepare(`INSERT OR REPLACE INTO matches(match_id,day,seed,team_a,team_b,winner,rounds,end_reason,convergences,final_digest,raw_json,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertChar, _ := s.db.Prepare(`INSERT OR REPLACE INTO character_results(match_id,character_id,team,result,final_hp,final_stamina,is_ko,is_dead) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRound, insertConv, insertMatch, insertChar} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRound:
			e := r.round
			b, _ := json.Marshal(e)
			if insertRound != nil {
				if _, err := tx.Stmt(insertRound).Exec(e.MatchID, e.Round, e.Digest, len(e.Moves), len(e.Convergences), string(b)); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for i, c := range e.Convergences {
				if insertConv == nil {
					break
				}
				if _, err := tx.Stmt(insertConv).Exec(e.MatchID, e.Round, i, c.Square, c.Winner, c.RollA, c.RollB, c.BaseDamage, c.PerLoser); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqMatch:
			m := r.result
			b, _ := json.Marshal(m)
			if insertMatch != nil {
				if _, err := tx.Stmt(insertMatch).Exec(
					m.MatchID,
					m.Day,
					m.Seed,
					m.TeamAID,
					m.TeamBID,
					m.Winner,
					m.Rounds,
					m.EndReason,
					m.ConvergenceCount,
					m.FinalDigest,
					string(b),
					r.at,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			for _, c := range m.CharacterResults {
				if insertChar == nil {
					break
				}
				if _, err := tx.Stmt(insertChar).Exec(
					m.MatchID, c.CharacterID, c.Team, c.Result, c.FinalHP, c.FinalStamina, boolInt(c.IsKO), boolInt(c.IsDead),
				); err != nil {
					rollback()
					break
				}
				opCount++
			}
		}
		// Ledger reads and writes share the single connection; release it once the queue drains.
		if len(s.ch) == 0 {
			commit()
			continue
		}
		flushIfNeeded()
	}

	commit()
}
