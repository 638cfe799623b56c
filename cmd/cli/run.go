package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/miku1hhhh/sina-dl/internal/app"
	"github.com/miku1hhhh/sina-dl/internal/domain"
	"github.com/miku1hhhh/sina-dl/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan, download and pack a range without a server",
	Long: `Runs the whole pipeline in-process: scans the identifier range, downloads
every video found and writes the ZIP archive to the output directory.
Ctrl+C stops the current phase; whatever finished is still packed.`,
	Run: func(cmd *cobra.Command, args []string) {
		start, _ := cmd.Flags().GetInt64("start")
		end, _ := cmd.Flags().GetInt64("end")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		verbose, _ := cmd.Flags().GetBool("verbose")

		if err := runPipeline(start, end, concurrency, format, output, verbose); err != nil {
			fail(err)
		}
	},
}

func init() {
	runCmd.Flags().Int64("start", 0, "First identifier of the range")
	runCmd.Flags().Int64("end", 0, "Last identifier of the range")
	runCmd.Flags().IntP("concurrency", "c", 0, "Parallel probes per batch (capped at 10)")
	runCmd.Flags().StringP("format", "f", "", "Force a container format (auto, mp4, flv, m3u8)")
	runCmd.Flags().StringP("output", "o", "", "Archive output directory (overrides config)")
	runCmd.Flags().BoolP("verbose", "v", false, "Print debug logs")
	runCmd.MarkFlagRequired("start")
	runCmd.MarkFlagRequired("end")
}

func runPipeline(start, end int64, concurrency int, format, output string, verbose bool) error {
	config, err := app.LoadConfig(serverConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if output != "" {
		config.Archive.OutputDir = output
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	general, err := logger.New(logger.Config{Level: level, Format: "console", OutputPath: "stderr"})
	if err != nil {
		return err
	}
	logs := logger.NewLoggerAdapter(general, nil)
	defer logs.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runtime, err := app.NewRuntime(ctx, config, logs, &consoleSink{})
	if err != nil {
		return err
	}
	defer runtime.Close()

	manager := runtime.Manager
	session := manager.CreateSession()

	// first Ctrl+C stops the running phase, the second aborts
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		fmt.Fprintln(os.Stderr, "\nStopping...")
		manager.Stop(session.ID)
		<-sigs
		cancel()
	}()

	req := domain.ScanRequest{
		Range:       domain.Range{Start: start, End: end},
		Concurrency: concurrency,
	}
	valid, err := manager.Scan(ctx, session.ID, req)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d valid videos in %d-%d\n", len(valid), start, end)
	if len(valid) == 0 {
		return nil
	}

	downloaded, err := manager.Download(ctx, session.ID, manager.NormalizeDownloadRequest(format))
	if err != nil {
		return err
	}
	var total int64
	for _, d := range downloaded {
		total += d.Size
	}
	fmt.Printf("Downloaded %d of %d videos (%s)\n", len(downloaded), len(valid), humanize.Bytes(uint64(total)))
	if len(downloaded) == 0 {
		return nil
	}

	record, err := manager.Pack(ctx, session.ID)
	if err != nil {
		return err
	}
	printArchive(*record)
	return nil
}

// consoleSink renders pipeline events on the terminal
type consoleSink struct {
	mu sync.Mutex
}

func (s *consoleSink) OnProgress(p domain.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p.Phase {
	case domain.PhaseScan:
		fmt.Printf("\r[scan] %d/%d (%.0f%%) valid: %d", p.Current, p.Total, p.Percent(), p.Valid)
	case domain.PhaseDownload:
		fmt.Printf("\r[download] %d/%d (%.0f%%)", p.Current, p.Total, p.Percent())
	default:
		return
	}
	if p.Current >= p.Total {
		fmt.Println()
	}
}

func (s *consoleSink) OnItemFound(_ string, item *domain.ValidatedItem) {}

func (s *consoleSink) OnItemStatusChanged(_ string, id int64, status domain.ItemStatus) {
	if status != domain.ItemFailed {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("\n  %d failed\n", id)
}

func (s *consoleSink) OnLog(_ string, level domain.LogLevel, message string) {
	if level != domain.LogWarning && level != domain.LogError {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(os.Stderr, "\n%s: %s\n", level, message)
}
