package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"metaleague.ai/internal/persistence/snapshot"
	"metaleague.ai/internal/protocol"
	"metaleague.ai/internal/sim/board"
	"metaleague.ai/internal/sim/catalogs"
	"metaleague.ai/internal/sim/match"
	"metaleague.ai/internal/sim/match/ledger"
	"metaleague.ai/internal/sim/match/traits"
	"metaleague.ai/internal/sim/roster"
	"metaleague.ai/internal/sim/schedule"
	"metaleague.ai/internal/sim/tuning"
	"metaleague.ai/internal/transport/observer"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred flushes happen before exiting.
func run() int {
	var (
		leaguePath = flag.String("league", "./configs/league.json", "league file (teams + schedule)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		leagueID   = flag.String("id", "", "league id used in match ids (default: league file name)")
		days       = flag.String("days", "", "comma separated days to play (default: every scheduled day)")
		parallel   = flag.Int("parallel", 4, "matches played concurrently")
		selector   = flag.String("selector", "weighted", "move selector: weighted|random")
		strict     = flag.Bool("strict", false, "panic on ledger invariant violations")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index and ledger store")
		snapPath   = flag.String("snapshot", "", "resume ledgers from a snapshot (optional)")
		observe    = flag.String("observe", "", "serve the live round feed on this address (empty to disable)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[matchday] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	league, err := roster.Load(*leaguePath)
	if err != nil {
		logger.Fatalf("load league: %v", err)
	}
	if err := league.CheckTraits(cats.Traits); err != nil {
		logger.Fatalf("league: %v", err)
	}
	id := strings.TrimSpace(*leagueID)
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(*leaguePath), filepath.Ext(*leaguePath))
	}
	playDays, err := parseDays(*days, league.Days())
	if err != nil {
		logger.Fatalf("days: %v", err)
	}

	sel, err := newSelector(*selector)
	if err != nil {
		logger.Fatalf("selector: %v", err)
	}

	idx, err := openIndex(filepath.Join(*dataDir, "index", "league.sqlite"), *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	var hub *observer.Hub
	if addr := strings.TrimSpace(*observe); addr != "" {
		hub = observer.NewHub(logger)
		srv := serveObserver(addr, hub, logger)
		defer func() {
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = srv.Shutdown(ctx2)
		}()
	}

	rec := newRecorder(*dataDir, idx, hub, logger)
	defer rec.Close()

	var (
		book  *ledger.InjuryBook
		carry map[string]ledger.Carryover
	)
	if p := strings.TrimSpace(*snapPath); p != "" {
		snap, err := snapshot.ReadLedger(p)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.League != "" && snap.Header.League != id {
			logger.Fatalf("snapshot league mismatch: flag=%s snap=%s", id, snap.Header.League)
		}
		book, carry = snap.Restore()
		logger.Printf("resumed from snapshot=%s day=%d injuries=%d", filepath.Base(p), snap.Header.Day, book.Len())
	}

	cfg := schedule.Config{
		League:     id,
		Tuning:     tune,
		NewAdapter: func() board.Adapter { return board.NewChessAdapter(sel) },
		Traits:     traits.NewCatalogResolver(cats.Traits),
		Parallel:   *parallel,
		Recorder:   rec,
		Strict:     *strict,
		Logger:     logger,
	}
	if idx != nil {
		cfg.Store = idx
	}
	runner := schedule.NewRunner(cfg, book, carry)

	failed := 0
	for _, day := range playDays {
		fixtures, err := buildFixtures(league, day)
		if err != nil {
			logger.Printf("day %d: %v", day, err)
			return 1
		}
		if len(fixtures) == 0 {
			logger.Printf("day %d: no fixtures", day)
			continue
		}
		sum, err := runner.RunDay(ctx, day, fixtures)
		if sum != nil {
			failed += sum.Failed
			report(logger, sum)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Printf("interrupted on day %d", day)
				return 130
			}
			logger.Printf("day %d: %v", day, err)
			return 1
		}
		path := filepath.Join(*dataDir, "snapshots", fmt.Sprintf("day-%04d.snap.zst", day))
		if err := snapshot.WriteLedger(path, snapshot.CaptureCarryover(id, day, runner.Book(), runner.Carryover())); err != nil {
			logger.Printf("snapshot write: %v", err)
		}
	}
	if idx != nil {
		st := idx.Stats()
		if st.DropRoundTotal+st.DropMatchTotal > 0 {
			logger.Printf("index backend dropped %s rounds, %s matches", humanize.Comma(int64(st.DropRoundTotal)), humanize.Comma(int64(st.DropMatchTotal)))
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func buildFixtures(league *roster.File, day int) ([]schedule.Fixture, error) {
	var out []schedule.Fixture
	for _, fx := range league.Fixtures(day) {
		a, err := league.Team(fx.TeamA)
		if err != nil {
			return nil, err
		}
		b, err := league.Team(fx.TeamB)
		if err != nil {
			return nil, err
		}
		out = append(out, schedule.Fixture{TeamA: a, TeamB: b, Seed: fx.Seed})
	}
	return out, nil
}

func newSelector(name string) (board.Selector, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "weighted":
		return board.DefaultSelector(), nil
	case "random":
		return board.RandomSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown selector %q", name)
	}
}

func report(logger *log.Logger, sum *schedule.Summary) {
	for _, o := range sum.Outcomes {
		if o.Err != nil {
			logger.Printf("day=%d match=%s %s: %v", sum.Day, o.Manifest.MatchID, errorCode(o.Err), o.Err)
			continue
		}
		r := o.Result
		logger.Printf("day=%d match=%s %s %d-%d %s winner=%s rounds=%d in %s",
			sum.Day, r.MatchID, r.TeamAID, r.TeamAWins, r.TeamBWins, r.TeamBID, r.Winner, r.Rounds, o.Elapsed.Round(time.Millisecond))
	}
	logger.Printf("day %d: %d matches, %d failed, %d healed, %d treated, %s",
		sum.Day, len(sum.Outcomes), sum.Failed, len(sum.Healed), len(sum.Treated), sum.Elapsed.Round(time.Millisecond))
}

// errorCode maps a match failure onto the wire error codes.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, roster.ErrBadRoster):
		return protocol.ErrBadRoster
	case errors.Is(err, schedule.ErrSharedCharacter):
		return protocol.ErrCharacterBusy
	case errors.Is(err, match.ErrConfig):
		return protocol.ErrConfig
	case errors.Is(err, errStorage):
		return protocol.ErrStorage
	default:
		return protocol.ErrMatchFailed
	}
}

func serveObserver(addr string, hub *observer.Hub, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/observe", hub.WSHandler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("observer listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("observer: %v", err)
		}
	}()
	return srv
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
