// Command tubemux looks up YouTube videos, relays their media streams and
// remuxes a video-only stream with an audio stream into one MP4.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		exitWith(err)
	}
}
