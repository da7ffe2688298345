package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grava-lang/grava/manifest"
	"github.com/grava-lang/grava/session"
	"github.com/grava-lang/grava/vm"
)

// runREPL reads and interprets lines from stdin until an empty line or
// "exit". Globals and interned strings persist across lines on the one VM.
func runREPL(vmInst *vm.VM, mf *manifest.Manifest) {
	var history *session.Store
	if path := mf.HistoryPath(); path != "" {
		var err error
		history, err = session.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
		} else {
			defer history.Close()
			log.Infof("session %s, history in %s", history.SessionID(), path)
		}
	}

	if err := repl(vmInst, mf, history, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}

// repl evaluates lines from in until an empty line, "exit" or end of
// input. A non-nil error means the read itself failed, not end of input.
func repl(vmInst *vm.VM, mf *manifest.Manifest, history *session.Store, in io.Reader, out, errw io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, mf.REPL.Prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "exit" {
			return nil
		}

		printed, err := vmInst.Interpret(line)
		if err != nil {
			fmt.Fprintln(errw, err)
		}
		if history != nil {
			if herr := history.Append(line, outcome(err), historyDetail(vmInst, printed, err)); herr != nil {
				log.Errorf("history append failed: %s", herr.Error())
			}
		}
	}
}

// historyDetail renders what a history entry records: the error message
// on failure, otherwise the printed values.
func historyDetail(vmInst *vm.VM, printed []vm.Value, err error) string {
	if err != nil {
		return err.Error()
	}
	rendered := make([]string, len(printed))
	for i, p := range printed {
		rendered[i] = p.Format(vmInst.Interner())
	}
	return strings.Join(rendered, "\n")
}

// printHistory writes the n most recent history entries, newest first.
func printHistory(mf *manifest.Manifest, n int, w io.Writer) error {
	store, err := openHistory(mf)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s#%d  %-13s  %s\n",
			e.At.Format(time.RFC3339), shortID(e.SessionID), e.Seq, e.Outcome, e.Input)
	}
	return nil
}

// replayHistory re-evaluates a past session's inputs on the VM, in
// evaluation order, rebuilding its globals. Inputs that failed when first
// evaluated fail the same way again and are logged, not fatal.
func replayHistory(vmInst *vm.VM, mf *manifest.Manifest, sessionID string) error {
	store, err := openHistory(mf)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Replay(sessionID)
	if err != nil {
		return fmt.Errorf("replaying session %s: %w", sessionID, err)
	}
	for _, e := range entries {
		if _, err := vmInst.Interpret(e.Input); err != nil {
			log.Errorf("replaying %q: %s", e.Input, err.Error())
		}
	}
	log.Infof("replayed %d entries from session %s", len(entries), sessionID)
	return nil
}

func openHistory(mf *manifest.Manifest) (*session.Store, error) {
	path := mf.HistoryPath()
	if path == "" {
		return nil, fmt.Errorf("no repl.history configured in %s", manifest.FileName)
	}
	return session.Open(path)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
