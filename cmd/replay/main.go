package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "metaleague.ai/internal/persistence/log"
	"metaleague.ai/internal/persistence/snapshot"
	"metaleague.ai/internal/sim/board"
	"metaleague.ai/internal/sim/catalogs"
	"metaleague.ai/internal/sim/match"
	"metaleague.ai/internal/sim/match/traits"
	"metaleague.ai/internal/sim/schedule"
	"metaleague.ai/internal/sim/tuning"
)

func main() {
	var (
		matchDir   = flag.String("match", "", "match directory containing match.json and rounds-*.jsonl.zst")
		snapPath   = flag.String("snapshot", "", "print a ledger snapshot summary (optional)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		selector   = flag.String("selector", "weighted", "move selector used when the match was played: weighted|random")
		toRound    = flag.Int("to_round", 0, "stop after this round (inclusive, optional)")
	)
	flag.Parse()

	if *matchDir == "" && *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -match or -snapshot")
		os.Exit(2)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadLedger(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d league=%s day=%d injuries=%d characters=%d\n",
			snap.Header.Version, snap.Header.League, snap.Header.Day, len(snap.Injuries), len(snap.Characters))
		for _, rec := range snap.Injuries {
			fmt.Printf("  injury %s %s matches_remaining=%d\n", rec.CharacterID, rec.Severity, rec.MatchesRemaining)
		}
	}
	if *matchDir == "" {
		return
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	var sel board.Selector = board.DefaultSelector()
	if *selector == "random" {
		sel = board.RandomSelector{}
	}

	m, err := schedule.ReadManifest(filepath.Join(*matchDir, schedule.ManifestFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read manifest:", err)
		os.Exit(1)
	}
	rounds, err := persistlog.ReadRounds(*matchDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read rounds:", err)
		os.Exit(1)
	}
	if len(rounds) == 0 {
		fmt.Fprintln(os.Stderr, "no rounds files found in", *matchDir)
		os.Exit(1)
	}

	checked, err := replayMatch(m, match.Config{
		Tuning:  tune,
		Adapter: board.NewChessAdapter(sel),
		Traits:  traits.NewCatalogResolver(cats.Traits),
	}, rounds, *toRound)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: match=%s seed=%d checked=%d rounds\n", m.MatchID, m.Seed, checked)
}

// replayMatch re-simulates the match described by m from base and checks every logged round
// digest, stopping after toRound when it is positive.
func replayMatch(m schedule.Manifest, base match.Config, rounds []match.RoundLogEntry, toRound int) (int, error) {
	a, b, err := m.Teams()
	if err != nil {
		return 0, err
	}
	book, carry := m.Ledgers()
	base.MatchID, base.Seed, base.Day = m.MatchID, m.Seed, m.Day
	base.Injuries, base.Carryover = book, carry
	base.Sinks = nil

	mt, err := match.New(base, a, b)
	if err != nil {
		return 0, err
	}
	checked := 0
	for _, want := range rounds {
		if toRound > 0 && want.Round > toRound {
			break
		}
		if mt.State() == match.StateTerminated {
			return checked, fmt.Errorf("match terminated before logged round %d", want.Round)
		}
		got := mt.Step()
		if got.Round != want.Round {
			return checked, fmt.Errorf("round mismatch: want=%d got=%d", want.Round, got.Round)
		}
		if got.Digest != want.Digest {
			return checked, fmt.Errorf("digest mismatch at round %d: got=%s want=%s", got.Round, got.Digest, want.Digest)
		}
		checked++
	}
	return checked, nil
}
