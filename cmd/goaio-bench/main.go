// Command goaio-bench drives an IoContext against a scratch file and reports
// throughput and latency, as a smoke test and a rough performance baseline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/goaio/goaio"
	"github.com/goaio/goaio/internal/bufpool"
	"github.com/goaio/goaio/internal/logging"
)

func main() {
	var (
		path      = flag.String("file", "", "Path to the scratch file (default: a temp file)")
		sizeStr   = flag.String("size", "64M", "Total size of the scratch file (e.g., 64M, 1G)")
		ioSizeStr = flag.String("io-size", "64K", "Per-operation I/O size (e.g., 4K, 64K)")
		maxOps    = flag.Int("max-ops", goaio.DefaultMaxOps, "Maximum in-flight operations")
		duration  = flag.Duration("duration", 5*time.Second, "How long to run the benchmark")
		writeOnly = flag.Bool("write-only", false, "Skip the read pass")
		verbose   = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	totalSize, err := parseSize(*sizeStr)
	if err != nil {
		log.Fatalf("invalid -size %q: %v", *sizeStr, err)
	}
	ioSize, err := parseSize(*ioSizeStr)
	if err != nil {
		log.Fatalf("invalid -io-size %q: %v", *ioSizeStr, err)
	}

	filePath := *path
	if filePath == "" {
		f, err := os.CreateTemp("", "goaio-bench-*")
		if err != nil {
			log.Fatalf("create temp file: %v", err)
		}
		filePath = f.Name()
		f.Close()
		defer os.Remove(filePath)
	}

	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		log.Fatalf("open %s: %v", filePath, err)
	}
	defer file.Close()

	if err := file.Truncate(totalSize); err != nil {
		log.Fatalf("truncate: %v", err)
	}

	metrics := goaio.NewMetrics()
	defer metrics.Stop()

	logger.Info("starting benchmark",
		"file", filePath, "size", formatSize(totalSize), "io_size", formatSize(ioSize),
		"max_ops", *maxOps, "duration", duration.String())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	stop := make(chan struct{})
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		close(stop)
	}()

	deadline := time.After(*duration)

	logger.Info("write pass starting")
	runPass(logger, metrics, file, totalSize, int(ioSize), *maxOps, deadline, stop, true)

	if !*writeOnly {
		logger.Info("read pass starting")
		runPass(logger, metrics, file, totalSize, int(ioSize), *maxOps, deadline, stop, false)
	}

	snap := metrics.Snapshot()
	fmt.Printf("\n--- results ---\n")
	fmt.Printf("read:  %d ops, %s, %.1f IOPS, %.1f MB/s\n",
		snap.ReadOps, formatSize(int64(snap.ReadBytes)), snap.ReadIOPS, snap.ReadBandwidth/1e6)
	fmt.Printf("write: %d ops, %s, %.1f IOPS, %.1f MB/s\n",
		snap.WriteOps, formatSize(int64(snap.WriteBytes)), snap.WriteIOPS, snap.WriteBandwidth/1e6)
	fmt.Printf("latency: avg=%s p50=%s p99=%s p999=%s\n",
		time.Duration(snap.AvgLatencyNs), time.Duration(snap.LatencyP50Ns),
		time.Duration(snap.LatencyP99Ns), time.Duration(snap.LatencyP999Ns))
	fmt.Printf("errors: %.2f%%\n", snap.ErrorRate)
}

// runPass drives maxOps-wide batches of Pwrite (isWrite) or Pread over file
// until deadline fires, stop is closed, or the file has been covered once.
func runPass(logger *logging.Logger, metrics *goaio.Metrics, file *os.File, totalSize int64, ioSize, maxOps int, deadline <-chan time.Time, stop <-chan struct{}, isWrite bool) {
	ctx, err := goaio.New[int64](maxOps, goaio.Options{Metrics: metrics})
	if err != nil {
		logger.Error("failed to create context", "error", err)
		return
	}
	defer ctx.Close()

	var mu sync.Mutex
	var inFlight int
	offsets := make(chan int64, maxOps)
	go func() {
		defer close(offsets)
		for off := int64(0); off+int64(ioSize) <= totalSize; off += int64(ioSize) {
			offsets <- off
		}
	}()

	fill := func() bool {
		for ctx.Pending() < maxOps {
			off, ok := <-offsets
			if !ok {
				return false
			}
			buf := bufpool.Get(ioSize)
			var submitErr error
			if isWrite {
				submitErr = ctx.Pwrite(file, goaio.Bytes(buf), off, off)
			} else {
				submitErr = ctx.Pread(file, goaio.Bytes(buf), off, off)
			}
			if submitErr != nil {
				logger.Error("submit failed", "error", submitErr)
				bufpool.Put(buf)
				return false
			}
			mu.Lock()
			inFlight++
			mu.Unlock()
		}
		return true
	}

	for {
		select {
		case <-deadline:
			return
		case <-stop:
			return
		default:
		}

		more := fill()
		if _, err := ctx.Submit(); err != nil {
			logger.Error("io_submit failed", "error", err)
			return
		}

		results, err := ctx.Results(1, maxOps, durationPtr(100*time.Millisecond))
		if err != nil {
			logger.Error("io_getevents failed", "error", err)
			return
		}
		for range results {
			// Metrics is updated by the MetricsObserver wired into ctx above;
			// this pass only needs to track how many writes/reads to drain.
			mu.Lock()
			inFlight--
			mu.Unlock()
		}

		mu.Lock()
		done := !more && inFlight == 0
		mu.Unlock()
		if done {
			return
		}
	}
}

func durationPtr(d time.Duration) *time.Duration { return &d }

// parseSize parses a size string like "64M", "1G", "512K".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(s)

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "G")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}

// formatSize formats a byte count as a human-readable string.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T"}
	return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
}
