// Command tilesheet packs a directory of tile PNGs into tilesheet images
// and an "x y name" index, working against a local directory.
//
// Usage:
//
//	tilesheet update NAME [--work-dir DIR] [--sizes 16,32] [--sync-db]
//	tilesheet remove NAME TILE
//	tilesheet index NAME
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"tilesheet/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.Load()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
