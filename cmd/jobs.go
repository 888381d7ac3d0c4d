package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sia-group/procure-agent/internal/model"
	"github.com/sia-group/procure-agent/internal/store"
)

var (
	jobsStatus  string
	jobsProduct string
	jobsLimit   int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recorded procurement jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Listing only reads the audit database, so no API clients are needed.
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListJobs(ctx, store.JobFilter{
			Status:      model.JobStatus(jobsStatus),
			ProductName: jobsProduct,
			Limit:       jobsLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (init, search, extraction, report, done, failed)")
	jobsCmd.Flags().StringVar(&jobsProduct, "product", "", "filter by product name substring")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "maximum number of jobs to list")
	rootCmd.AddCommand(jobsCmd)
}
