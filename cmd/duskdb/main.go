// Command duskdb is the CLI entry point: it opens a database directory and
// drives internal/cli's statement loop over stdin or a `.sql` file.
//
// Flag set kept to what a single-node CLI actually needs: data location,
// log location, output format, buffer tuning, and file vs. stdin input.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/duskdb/duskdb/internal/buffer"
	"github.com/duskdb/duskdb/internal/cli"
	"github.com/duskdb/duskdb/internal/engine/db"
	"github.com/duskdb/duskdb/internal/logging"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "directory holding pages, the heap map, and the catalog")
	logDir := flag.String("log-dir", "./log", "directory to write the per-run compile log into")
	format := flag.String("format", "table", "output format: table or yaml")
	capacity := flag.Int("buffer-capacity", 64, "buffer pool capacity, in pages")
	policyFlag := flag.String("buffer-policy", "lru", "buffer eviction policy: lru or fifo")
	file := flag.String("file", "", "run the statements in this .sql file instead of reading stdin")
	schedule := flag.Bool("enable-schedule", false, "allow the :schedule meta-command")
	flag.Parse()

	policy := buffer.PolicyLRU
	if *policyFlag == "fifo" {
		policy = buffer.PolicyFIFO
	}

	runID := uuid.NewString()
	now := time.Now()
	logger, logFile, err := logging.Open(*logDir, now, runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "duskdb:", err)
		os.Exit(1)
	}
	defer logFile.Close()

	d, err := db.Open(db.Config{
		PageDir:        filepath.Join(*dataDir, "pages"),
		HeapMapPath:    filepath.Join(*dataDir, "table_files.json"),
		CatalogPath:    filepath.Join(*dataDir, "catalog.json"),
		BufferCapacity: *capacity,
		BufferPolicy:   policy,
		Logger:         logger,
		RunID:          runID,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "duskdb:", err)
		os.Exit(1)
	}

	var sched *cli.Scheduler
	if *schedule {
		sched = cli.NewScheduler()
		defer sched.Stop()
	}

	opt := cli.Options{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
		DB:     d,
		Format: *format,
		Sched:  sched,
	}

	if *file != "" {
		if err := cli.RunFile(opt, *file); err != nil {
			fmt.Fprintln(os.Stderr, "duskdb:", err)
			os.Exit(1)
		}
		return
	}

	opt.In = os.Stdin
	opt.Interactive = cli.DetectInteractive(os.Stdin)
	if err := cli.Run(opt); err != nil {
		fmt.Fprintln(os.Stderr, "duskdb:", err)
		os.Exit(1)
	}
}
