// Scheduling support for the `:schedule <cron-expr> <path>` meta-command
// (§6): a robfig/cron/v3 instance driving file replays, with no
// INTERVAL/ONCE job kinds and no persistence layer — duskdb's scheduler
// only ever runs `:schedule`'s own cron jobs for the lifetime of the
// process.
package cli

import (
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs `:read`-style file replays on a cron schedule for as long
// as the CLI process stays up.
type Scheduler struct {
	mu   sync.Mutex
	cron *cron.Cron
	ids  map[string]cron.EntryID
}

// NewScheduler builds a Scheduler with seconds-field cron expressions
// enabled and starts it immediately.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		ids:  make(map[string]cron.EntryID),
	}
	s.cron.Start()
	return s
}

// Stop halts the underlying cron runner, waiting for any in-flight job.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// addJob registers run to fire on expr, replacing any prior job already
// registered under the same key (cron expr + path combined).
func (s *Scheduler) addJob(key, expr string, run func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[key]; ok {
		s.cron.Remove(id)
	}
	id, err := s.cron.AddFunc(expr, run)
	if err != nil {
		return fmt.Errorf("cli: schedule %q: %w", expr, err)
	}
	s.ids[key] = id
	return nil
}

// scheduleFromLine parses "<cron-expr...> <path>" (a 6-field, seconds-first
// cron expression followed by a file path) and registers it against opt.Sched.
func scheduleFromLine(opt Options, rest string) error {
	if opt.Sched == nil {
		return fmt.Errorf("scheduling is not enabled for this session")
	}
	fields := strings.Fields(rest)
	// A seconds-enabled cron expression is 6 fields; the trailing field is
	// always the file path to replay.
	if len(fields) < 6 {
		return fmt.Errorf("usage: :schedule <sec> <min> <hour> <dom> <mon> <dow> <path>")
	}
	expr := strings.Join(fields[:6], " ")
	path := strings.Join(fields[6:], " ")
	if path == "" {
		return fmt.Errorf("usage: :schedule <sec> <min> <hour> <dom> <mon> <dow> <path>")
	}
	key := expr + " " + path
	return opt.Sched.addJob(key, expr, func() {
		if err := RunFile(opt, path); err != nil {
			fmt.Fprintln(opt.ErrOut, "ERR: scheduled job:", err)
		}
	})
}
