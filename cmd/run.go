package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sia-group/procure-agent/internal/config"
	"github.com/sia-group/procure-agent/internal/model"
)

var (
	runProduct   string
	runCountry   string
	runCount     int
	runWebsites  []string
	runLanguage  string
	runSitesFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run procurement research for a single product",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		websites := runWebsites
		if len(websites) == 0 {
			sitesFile := runSitesFile
			if sitesFile == "" {
				sitesFile = cfg.Pipeline.SitesFile
			}
			websites, err = config.LoadSites(sitesFile)
			if err != nil {
				return eris.Wrap(err, "load sites file")
			}
		}

		job := model.Job{
			ProductName: runProduct,
			Country:     runCountry,
			ResultCount: runCount,
			Websites:    websites,
			Language:    runLanguage,
		}

		result, err := env.Pipeline.Run(ctx, job)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("research complete",
			zap.String("product", job.ProductName),
			zap.String("country", job.Country),
			zap.Int("extracted", result.Extracted),
			zap.String("report", result.ReportPath),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runProduct, "product", "", "product name to research (required)")
	runCmd.Flags().StringVar(&runCountry, "country", "", "country to research prices in (required)")
	runCmd.Flags().IntVar(&runCount, "count", 5, "number of products to include in the report")
	runCmd.Flags().StringSliceVar(&runWebsites, "websites", nil, "e-commerce sites to search (default built-in list)")
	runCmd.Flags().StringVar(&runLanguage, "language", "", "report language (default from config)")
	runCmd.Flags().StringVar(&runSitesFile, "sites-file", "", "YAML file listing sites to search")
	_ = runCmd.MarkFlagRequired("product")
	_ = runCmd.MarkFlagRequired("country")
	rootCmd.AddCommand(runCmd)
}
