//go:build windows

package procreap

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
)

func killPID(int) error { return errors.New("not used on windows") }

// Reap force-kills every process tree whose image matches a browser name.
func (r *Reaper) Reap(ctx context.Context) (int, error) {
	killed := 0
	for _, n := range r.names {
		image := n
		if !strings.HasSuffix(image, ".exe") {
			image += ".exe"
		}
		out, err := r.run(ctx, "taskkill", "/F", "/T", "/IM", image)
		if err != nil {
			// exit status 128: no such process
			log.Debug().Err(err).Str("image", image).Msg("taskkill")
			continue
		}
		killed += strings.Count(string(out), "SUCCESS")
	}
	return killed, nil
}
