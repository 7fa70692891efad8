// timesyncctl is a small operator CLI for the timesync server: it
// triggers syncs, previews classification, and inspects the run log over
// the server's HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/timesync/server/internal/models"
)

var (
	serverURL string
	apiKey    string
	userID    string
	fromDate  string
	toDate    string
	force     bool
)

var rootCmd = &cobra.Command{
	Use:   "timesyncctl",
	Short: "Operator CLI for the timesync server",
	Long: `timesyncctl drives the timesync server's HTTP API: trigger a sync for
a user and date range, preview what a sync would do, and inspect past runs.`,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a sync for a user and date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		var run models.SyncRunResponse
		err := request(http.MethodPost, "/api/sync", models.SyncRequest{
			UserID: userID, From: fromDate, To: toDate, Force: force,
		}, &run)
		if err != nil {
			return err
		}

		fmt.Printf("run %s: %s\n", run.ID, run.Status)
		fmt.Printf("  attempted=%d succeeded=%d failed=%d skipped=%d\n",
			run.Attempted, run.Succeeded, run.Failed, run.Skipped)
		for _, p := range run.UnmappedProjects {
			fmt.Printf("  unmapped project: %s\n", p)
		}
		for _, e := range run.Errors {
			fmt.Printf("  failed %s %s: %s (entries %v)\n", e.ProjectID, e.Day, e.Message, e.EntryIDs)
		}
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show what a sync would do without writing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		var preview models.PreviewResponse
		err := request(http.MethodPost, "/api/sync/preview", models.SyncRequest{
			UserID: userID, From: fromDate, To: toDate, Force: force,
		}, &preview)
		if err != nil {
			return err
		}

		for _, u := range preview.Units {
			if u.Reason != "" {
				fmt.Printf("%s  %-12s  %5.2fh  %s (%s)\n", u.Day, u.ProjectID, u.Hours, u.Action, u.Reason)
			} else {
				fmt.Printf("%s  %-12s  %5.2fh  %s\n", u.Day, u.ProjectID, u.Hours, u.Action)
			}
		}
		for _, p := range preview.UnmappedProjects {
			fmt.Printf("unmapped project: %s\n", p)
		}
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent sync runs for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		var runs []models.SyncRunResponse
		if err := request(http.MethodGet, "/api/sync/runs?userId="+userID, nil, &runs); err != nil {
			return err
		}

		for _, run := range runs {
			completed := "-"
			if run.CompletedAt != nil {
				completed = run.CompletedAt.Format(time.RFC3339)
			}
			fmt.Printf("%s  %-9s  ok=%d fail=%d skip=%d  started=%s completed=%s\n",
				run.ID, run.Status, run.Succeeded, run.Failed, run.Skipped,
				run.StartedAt.Format(time.RFC3339), completed)
		}
		return nil
	},
}

func request(method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr models.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	return json.Unmarshal(data, out)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("TIMESYNC_SERVER", "http://localhost:5000"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("TIMESYNC_API_KEY"), "API key")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "user id")

	for _, cmd := range []*cobra.Command{syncCmd, previewCmd} {
		cmd.Flags().StringVar(&fromDate, "from", "", "inclusive start date (YYYY-MM-DD)")
		cmd.Flags().StringVar(&toDate, "to", "", "inclusive end date (YYYY-MM-DD)")
		cmd.Flags().BoolVar(&force, "force", false, "bypass unchanged-hash skipping")
	}

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(runsCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
