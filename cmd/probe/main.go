package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/okian/seasonboard/internal/probe"
	"github.com/okian/seasonboard/pkg/logger"
)

// Default configuration constants.
const (
	defaultPageSize     = 100
	defaultWorkers      = 4
	defaultTimeout      = 30 * time.Second
	defaultProbeTimeout = 5 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		period   = flag.String("period", "current", "Period selector to walk")
		pageSize = flag.Int("page-size", defaultPageSize, "Entries per page request")
		workers  = flag.Int("workers", defaultWorkers, "Concurrent page fetches")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seasons  = flag.String("verify-seasons", "", "Comma separated seasons whose snapshots are verified")
		format   = flag.String("log-format", "text", "Log format: text or json")
		verbose  = flag.Bool("verbose", false, "Log every page")
	)
	flag.Parse()

	if err := logger.InitWith(os.Stdout, *format); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	list, err := parseSeasons(*seasons)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultProbeTimeout)
	defer cancel()

	_, err = probe.Run(ctx, &probe.Config{
		BaseURL:  strings.TrimRight(*baseURL, "/"),
		Period:   *period,
		PageSize: *pageSize,
		Workers:  *workers,
		Timeout:  *timeout,
		Seasons:  list,
		Verbose:  *verbose,
	}, logger.Get())
	if err != nil {
		logger.Get().Error(ctx, "probe failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}

func parseSeasons(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []uint64
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid season %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
