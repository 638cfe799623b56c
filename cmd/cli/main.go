package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "sina-dl",
		Short: "sina-dl CLI - discover, download and package videos by identifier range",
		Long:  `A command-line interface for scanning identifier ranges, downloading the videos found and packing them into ZIP archives.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	sessionCmd.AddCommand(sessionCreateCmd, sessionListCmd, sessionGetCmd, sessionClearCmd, sessionDeleteCmd)

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(archivesCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage scan sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new session",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var snap domain.SessionSnapshot
		if err := apiCall("POST", "/api/v1/sessions", nil, &snap); err != nil {
			fail(err)
		}
		fmt.Printf("Session created: %s\n", snap.ID)
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var sessions []domain.SessionSnapshot
		if err := apiCall("GET", "/api/v1/sessions", nil, &sessions); err != nil {
			fail(err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATE\tRANGE\tVALID\tDOWNLOADED\tCREATED")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%d-%d\t%d\t%d\t%s\n",
				truncate(s.ID, 8),
				s.State,
				s.Range.Start, s.Range.End,
				s.ValidCount,
				s.DownloadedCount,
				humanize.Time(s.CreatedAt))
		}
		w.Flush()
	},
}

var sessionGetCmd = &cobra.Command{
	Use:   "get [session]",
	Short: "Show session details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var snap domain.SessionSnapshot
		if err := apiCall("GET", "/api/v1/sessions/"+args[0], nil, &snap); err != nil {
			fail(err)
		}
		printSnapshot(snap)
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear [session]",
	Short: "Drop all results of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		if err := apiCall("POST", "/api/v1/sessions/"+args[0]+"/clear", nil, nil); err != nil {
			fail(err)
		}
		fmt.Println("Session cleared")
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [session]",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		if err := apiCall("DELETE", "/api/v1/sessions/"+args[0], nil, nil); err != nil {
			fail(err)
		}
		fmt.Println("Session deleted")
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [session]",
	Short: "Scan an identifier range for available videos",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		start, _ := cmd.Flags().GetInt64("start")
		end, _ := cmd.Flags().GetInt64("end")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		wait, _ := cmd.Flags().GetBool("wait")

		payload := map[string]interface{}{
			"start":       start,
			"end":         end,
			"concurrency": concurrency,
			"wait":        wait,
		}
		var snap domain.SessionSnapshot
		if err := apiCall("POST", "/api/v1/sessions/"+args[0]+"/scan", payload, &snap); err != nil {
			fail(err)
		}
		if !wait {
			fmt.Printf("Scan of %d-%d started\n", start, end)
			return
		}
		printSnapshot(snap)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [session]",
	Short: "Stop the running scan or download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var result struct {
			Stopped bool `json:"stopped"`
		}
		if err := apiCall("POST", "/api/v1/sessions/"+args[0]+"/stop", nil, &result); err != nil {
			fail(err)
		}
		if result.Stopped {
			fmt.Println("Stop requested")
		} else {
			fmt.Println("Nothing to stop")
		}
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [session]",
	Short: "Download every validated item of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		format, _ := cmd.Flags().GetString("format")
		wait, _ := cmd.Flags().GetBool("wait")

		payload := map[string]interface{}{"format": format, "wait": wait}
		var snap domain.SessionSnapshot
		if err := apiCall("POST", "/api/v1/sessions/"+args[0]+"/download", payload, &snap); err != nil {
			fail(err)
		}
		if !wait {
			fmt.Printf("Download of %d items started\n", snap.ValidCount)
			return
		}
		printSnapshot(snap)
	},
}

var packCmd = &cobra.Command{
	Use:   "pack [session]",
	Short: "Pack the completed downloads into a ZIP archive",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var record domain.ArchiveRecord
		if err := apiCall("POST", "/api/v1/sessions/"+args[0]+"/archive", nil, &record); err != nil {
			fail(err)
		}
		printArchive(record)
	},
}

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List packed archives",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")

		var records []domain.ArchiveRecord
		if err := apiCall("GET", "/api/v1/archives?limit="+strconv.Itoa(limit), nil, &records); err != nil {
			fail(err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tENTRIES\tSIZE\tCREATED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				truncate(r.ID, 8),
				r.Name,
				r.EntryCount,
				humanize.Bytes(uint64(r.Size)),
				r.CreatedAt.Format(time.RFC3339))
		}
		w.Flush()
	},
}

var itemCmd = &cobra.Command{
	Use:   "item [session] [vid]",
	Short: "Save the payload of one downloaded item",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		output, _ := cmd.Flags().GetString("output")

		data, filename, err := apiDownload("/api/v1/sessions/" + args[0] + "/items/" + args[1] + "/payload")
		if err != nil {
			fail(err)
		}
		if output == "" {
			output = filename
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			fail(err)
		}
		fmt.Printf("Saved %s (%s)\n", output, humanize.Bytes(uint64(len(data))))
	},
}

func init() {
	scanCmd.Flags().Int64("start", 0, "First identifier of the range")
	scanCmd.Flags().Int64("end", 0, "Last identifier of the range")
	scanCmd.Flags().IntP("concurrency", "c", 0, "Parallel probes per batch (capped at 10)")
	scanCmd.Flags().BoolP("wait", "w", false, "Wait for the scan to finish")
	scanCmd.MarkFlagRequired("start")
	scanCmd.MarkFlagRequired("end")

	downloadCmd.Flags().StringP("format", "f", "", "Force a container format (auto, mp4, flv, m3u8)")
	downloadCmd.Flags().BoolP("wait", "w", false, "Wait for the downloads to finish")

	archivesCmd.Flags().IntP("limit", "l", 50, "Maximum number of archives to list")
	itemCmd.Flags().StringP("output", "o", "", "Output file (defaults to the entry name)")
}

func printSnapshot(s domain.SessionSnapshot) {
	fmt.Printf("Session Details:\n")
	fmt.Printf("  ID:         %s\n", s.ID)
	fmt.Printf("  State:      %s\n", s.State)
	fmt.Printf("  Range:      %d-%d\n", s.Range.Start, s.Range.End)
	fmt.Printf("  Valid:      %d\n", s.ValidCount)
	fmt.Printf("  Downloaded: %d\n", s.DownloadedCount)
	if len(s.Items) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nVID\tTITLE\tFORMAT\tSTATUS\tSIZE")
	for _, item := range s.Items {
		size := ""
		if item.Size > 0 {
			size = humanize.Bytes(uint64(item.Size))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			item.Identifier,
			truncate(item.Title, 30),
			item.Format,
			item.Status,
			size)
	}
	w.Flush()
}

func printArchive(r domain.ArchiveRecord) {
	fmt.Printf("Archive created: %s\n", r.Name)
	fmt.Printf("  ID:      %s\n", r.ID)
	fmt.Printf("  Entries: %d\n", r.EntryCount)
	fmt.Printf("  Size:    %s\n", humanize.Bytes(uint64(r.Size)))
	fmt.Printf("  Path:    %s\n", r.Path)
	if r.MirrorURL != "" {
		fmt.Printf("  Mirror:  %s\n", r.MirrorURL)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
