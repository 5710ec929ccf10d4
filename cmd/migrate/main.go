// migrate applies DB migrations from embedded SQL; use go run ./cmd/migrate.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"devicegate/cmd/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	dsn := os.Getenv("DEVICEGATE_DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DEVICEGATE_DATABASE_URL is not set")
		os.Exit(1)
	}

	if err := migrate.Run(dsn, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
