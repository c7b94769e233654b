// Package logging opens duskdb's per-run compile log (§6): a plain
// log.Logger writing to log/compile_log_<timestamp>.txt, stamped with a
// run ID in its header line.
//
// Uses the standard log package at this boundary rather than a
// structured/leveled logging dependency — plain log.Printf diagnostics are
// enough for a per-run compile trace.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Open creates dir (if needed) and a fresh log/compile_log_<ts>.txt file
// inside it, returning a *log.Logger writing to that file (its first line
// names runID, or a fresh UUID when runID is empty) and the open file.
// timestamp is formatted YYYYMMDD_HHMMSS.
func Open(dir string, now time.Time, runID string) (*log.Logger, *os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: create log dir %s: %w", dir, err)
	}
	name := fmt.Sprintf("compile_log_%s.txt", now.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: create log file %s: %w", path, err)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := log.New(f, "", log.LstdFlags)
	logger.Printf("run %s started", runID)
	return logger, f, nil
}
