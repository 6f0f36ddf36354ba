package announce

import (
	"bufio"
	"context"
	"io"
)

// maxLine bounds a single announcement read by Pump.
const maxLine = 64 * 1024

// Pump announces every line read from r until EOF or ctx is done. It is how
// the game engine's announce pipe is served; a dialog header and body
// written as two lines become two announcements.
func Pump(ctx context.Context, r io.Reader, a *Announcer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.Announce(sc.Text())
	}
	return sc.Err()
}
