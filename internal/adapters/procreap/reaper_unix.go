//go:build unix

package procreap

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/rs/zerolog/log"
)

func killPID(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}

// Reap SIGKILLs orphaned browser processes and returns how many it killed.
func (r *Reaper) Reap(ctx context.Context) (int, error) {
	out, err := r.run(ctx, "ps", "-axo", "pid=,ppid=,comm=")
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}
	killed := 0
	for _, p := range r.orphans(parsePS(out)) {
		if err := r.kill(p.PID); err != nil {
			if !errors.Is(err, syscall.ESRCH) {
				log.Warn().Err(err).Int("pid", p.PID).Str("name", p.Name).Msg("kill failed")
			}
			continue
		}
		log.Debug().Int("pid", p.PID).Int("ppid", p.PPID).Str("name", p.Name).Msg("orphan killed")
		killed++
	}
	return killed, nil
}
