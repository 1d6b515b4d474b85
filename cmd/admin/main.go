package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"metaleague.ai/internal/persistence/indexdb"
	"metaleague.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "standings":
			standingsCmd(os.Args[2:])
			return
		case "matches":
			matchesCmd(os.Args[2:])
			return
		case "injuries":
			injuriesCmd(os.Args[2:])
			return
		case "snapshots":
			snapshotsCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin standings|matches|injuries|snapshots [flags]")
	os.Exit(2)
}

func openDB(fs *flag.FlagSet, args []string) *indexdb.SQLiteIndex {
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/league.sqlite)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "league.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return idx
}

func standingsCmd(args []string) {
	fs := flag.NewFlagSet("standings", flag.ExitOnError)
	idx := openDB(fs, args)
	defer idx.Close()

	table, err := idx.Standings(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "standings:", err)
		os.Exit(1)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTEAM\tP\tW\tD\tL\tBOARDS\tPTS")
	for i, st := range table {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%+d\t%d\n", i+1, st.Team, st.Played, st.Won, st.Drawn, st.Lost, st.BoardDiff, st.Points)
	}
	_ = tw.Flush()
}

func matchesCmd(args []string) {
	fs := flag.NewFlagSet("matches", flag.ExitOnError)
	day := fs.Int("day", 0, "day filter (optional)")
	limit := fs.Int("limit", 50, "result limit")
	idx := openDB(fs, args)
	defer idx.Close()

	rows, err := idx.Matches(context.Background(), *day, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "matches:", err)
		os.Exit(1)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tMATCH\tTEAMS\tWINNER\tROUNDS\tEND\tRECORDED")
	for _, m := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s v %s\t%s\t%d\t%s\t%s\n", m.Day, m.MatchID, m.TeamA, m.TeamB, m.Winner, m.Rounds, m.EndReason, humanize.Time(m.RecordedAt))
	}
	_ = tw.Flush()
}

func injuriesCmd(args []string) {
	fs := flag.NewFlagSet("injuries", flag.ExitOnError)
	idx := openDB(fs, args)
	defer idx.Close()

	recs, err := idx.Injuries(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "injuries:", err)
		os.Exit(1)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHARACTER\tSEVERITY\tMATCHES\tCAUSE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.CharacterID, r.Severity, r.MatchesRemaining, r.Cause)
	}
	_ = tw.Flush()
}

func snapshotsCmd(args []string) {
	fs := flag.NewFlagSet("snapshots", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		snap, err := snapshot.ReadLedger(path)
		if err != nil {
			fmt.Printf("%s\tunreadable: %v\n", e.Name(), err)
			continue
		}
		fmt.Printf("%s\tleague=%s day=%d injuries=%d characters=%d size=%s age=%s\n",
			e.Name(), snap.Header.League, snap.Header.Day, len(snap.Injuries), len(snap.Characters),
			humanize.Bytes(uint64(info.Size())), humanize.RelTime(info.ModTime(), time.Now(), "ago", "from now"))
	}
}
