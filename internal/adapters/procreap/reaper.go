// Package procreap kills browser processes left behind by crashed or
// aborted collector runs.
package procreap

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultNames are the process names Chrome and its helpers run under.
var DefaultNames = []string{"chrome", "chromium", "google-chrome", "headless_shell", "chromedriver"}

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Reaper implements domain.ProcessReaper. It must only run while no
// browser session of this process is live.
type Reaper struct {
	names []string
	self  int
	run   runner
	kill  func(pid int) error
}

func New(names []string) *Reaper {
	if len(names) == 0 {
		names = DefaultNames
	}
	lower := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			lower = append(lower, n)
		}
	}
	return &Reaper{names: lower, self: os.Getpid(), run: execRun, kill: killPID}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type proc struct {
	PID  int
	PPID int
	Name string
}

// parsePS reads `ps -axo pid=,ppid=,comm=` output. Malformed lines are skipped.
func parsePS(out []byte) []proc {
	var ps []proc
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) < 3 {
			continue
		}
		pid, err1 := strconv.Atoi(f[0])
		ppid, err2 := strconv.Atoi(f[1])
		if err1 != nil || err2 != nil {
			continue
		}
		ps = append(ps, proc{PID: pid, PPID: ppid, Name: strings.Join(f[2:], " ")})
	}
	return ps
}

// orphans picks name-matched processes re-parented to init or left as
// direct children of this process.
func (r *Reaper) orphans(ps []proc) []proc {
	var out []proc
	for _, p := range ps {
		if p.PID == r.self || p.PID <= 1 {
			continue
		}
		if p.PPID != 1 && p.PPID != r.self {
			continue
		}
		if r.matches(p.Name) {
			out = append(out, p)
		}
	}
	return out
}

func (r *Reaper) matches(comm string) bool {
	base := strings.ToLower(filepath.Base(comm))
	for _, n := range r.names {
		if strings.HasPrefix(base, n) {
			return true
		}
	}
	return false
}
