// Package cli implements duskdb's interactive/batch front end: a
// semicolon-terminated statement loop over stdin or a `.sql` file, plus a
// handful of `:`-prefixed meta-commands (§6).
//
// Built as a bufio.Scanner with an enlarged buffer, statement accumulation
// until a trailing ';', and an os.Stdin.Stat()-based interactive/
// non-interactive prompt switch. duskdb's output surface is the ASCII
// table and YAML formats only — no HTML/"beautiful" block rendering, no
// WASM glue.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/duskdb/duskdb/internal/engine/db"
	"github.com/duskdb/duskdb/internal/format"
)

// Options configures one REPL run.
type Options struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
	DB     *db.DB
	Format string // "table" (default) or "yaml"

	// Sched backs the `:schedule` meta-command; nil disables it.
	Sched *Scheduler

	// Interactive controls whether prompts ("duskdb> ", "... ") are
	// printed. Run uses the value as given and does not inspect In; callers
	// set it themselves (cmd/duskdb uses DetectInteractive).
	Interactive bool
}

// Run drives the statement loop until In is exhausted or a quit/exit
// meta-command fires.
func Run(opt Options) error {
	sc := bufio.NewScanner(opt.In)
	sc.Buffer(make([]byte, 1024), 4*1024*1024)

	var buf strings.Builder
	first := true
	for {
		if opt.Interactive {
			if buf.Len() == 0 {
				if !first {
					fmt.Fprintln(opt.Out)
				}
				first = false
				fmt.Fprint(opt.Out, "duskdb> ")
			} else {
				fmt.Fprint(opt.Out, "... ")
			}
		}

		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("cli: read input: %w", err)
			}
			return nil
		}

		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if buf.Len() == 0 && isMeta(line) {
			stop, err := handleMeta(opt, line)
			if err != nil {
				fmt.Fprintln(opt.ErrOut, "ERR:", err)
			}
			if stop {
				return nil
			}
			continue
		}

		buf.WriteString(line)
		buf.WriteString(" ")
		if endsStatement(buf.String()) {
			stmt := strings.TrimSpace(buf.String())
			buf.Reset()
			runOne(opt, stmt)
		}
	}
}

// isMeta reports whether line is a meta-command rather than SQL: the verbs
// "quit"/"exit" (bare), or a ":"-prefixed verb.
func isMeta(line string) bool {
	lower := strings.ToLower(line)
	return lower == "quit" || lower == "exit" || strings.HasPrefix(line, ":")
}

// handleMeta dispatches a meta-command; stop reports whether Run should
// return afterward.
func handleMeta(opt Options, line string) (stop bool, err error) {
	lower := strings.ToLower(line)
	switch {
	case lower == "quit" || lower == "exit":
		return true, nil
	case strings.HasPrefix(line, ":read ") || strings.HasPrefix(line, ":r "):
		path := strings.TrimSpace(line[strings.Index(line, " ")+1:])
		return false, RunFile(opt, path)
	case strings.HasPrefix(line, ":schedule "):
		rest := strings.TrimSpace(strings.TrimPrefix(line, ":schedule "))
		return false, scheduleFromLine(opt, rest)
	default:
		return false, fmt.Errorf("unrecognized meta-command %q", line)
	}
}

// RunFile executes every semicolon-terminated statement in the file at
// path, in order, against opt.DB (§6's `:read <path>`).
func RunFile(opt Options, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cli: read %s: %w", path, err)
	}
	for _, stmt := range splitStatements(string(b)) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		runOne(opt, stmt)
	}
	return nil
}

// runOne executes one statement and prints its result or error.
func runOne(opt Options, stmt string) {
	res, err := opt.DB.Run(stmt)
	if err != nil {
		printError(opt.ErrOut, err)
		return
	}
	printResult(opt, res)
}

func printResult(opt Options, res *db.Result) {
	switch {
	case res.ExplainText != "":
		fmt.Fprintln(opt.Out, res.ExplainText)
	case res.Message != "":
		fmt.Fprintln(opt.Out, res.Message)
	default:
		switch strings.ToLower(opt.Format) {
		case "yaml":
			out, err := format.YAML(res.Rows, res.Columns)
			if err != nil {
				fmt.Fprintln(opt.ErrOut, "ERR:", err)
				return
			}
			fmt.Fprint(opt.Out, out)
			fmt.Fprintf(opt.Out, "%d row(s) returned\n", len(res.Rows))
		default:
			fmt.Fprint(opt.Out, format.Table(res.Rows, res.Columns))
		}
	}
}

// printError surfaces err. Each typed error's own Error() method already
// appends its 智能提示： hint line (§7), so there is nothing left to do here
// beyond printing it.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "ERR:", err)
}

// endsStatement reports whether buf, read so far, ends with a semicolon
// lying outside any quoted string.
func endsStatement(buf string) bool {
	trimmed := strings.TrimRight(buf, " \t")
	if !strings.HasSuffix(trimmed, ";") {
		return false
	}
	return !inQuoteAt(buf, len(trimmed)-1)
}

// splitStatements splits src on semicolons that lie outside single-quoted
// string literals (§6: "statement splitting outside quoted strings").
func splitStatements(src string) []string {
	var stmts []string
	var cur strings.Builder
	inQuote := false
	for _, r := range src {
		cur.WriteRune(r)
		if r == '\'' {
			inQuote = !inQuote
		}
		if r == ';' && !inQuote {
			stmts = append(stmts, cur.String())
			cur.Reset()
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		stmts = append(stmts, cur.String())
	}
	return stmts
}

// inQuoteAt reports whether position pos in s lies inside a single-quoted
// string literal, by counting quotes up to pos. There is no escape
// handling: every single quote toggles the state, as in the lexer.
func inQuoteAt(s string, pos int) bool {
	inQuote := false
	for i, r := range s {
		if i > pos {
			break
		}
		if r == '\'' {
			inQuote = !inQuote
		}
	}
	return inQuote
}

// DetectInteractive reports whether f behaves like a terminal (not a
// redirected file/pipe), via an os.Stdin.Stat() mode-bit check.
func DetectInteractive(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
