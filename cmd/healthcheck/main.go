package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ericfisherdev/stargazer/internal/adapter/driven/store"
	"github.com/ericfisherdev/stargazer/internal/config"
)

func main() {
	os.Exit(check())
}

// check exits 0 when the configured store accepts a connection and answers a
// ping within two seconds.
func check() int {
	// Stay quiet on success; container healthchecks only read the exit code.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cfg, err := config.Load()
	if err != nil {
		return 1
	}

	kind, target, err := cfg.Store()
	if err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := store.Open(ctx, kind, target)
	if err != nil {
		return 1
	}
	defer func() { _ = st.Close() }()

	if err := st.Ping(ctx); err != nil {
		return 1
	}

	return 0
}
