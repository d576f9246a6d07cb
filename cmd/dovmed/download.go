// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dovmed/dovmed/internal/download"
	"github.com/dovmed/dovmed/internal/httputil"
	"github.com/dovmed/dovmed/pkg/types"
)

const defaultTimeout = 10 * time.Minute

var downloadCmd = &cobra.Command{
	Use:   "download [subsets...]",
	Short: "Download PMC Open Access bulk archives from NCBI",
	Long: `Download fetches the PMC OA bulk .tar.gz archives for the requested
subsets (oa_comm, oa_noncomm, oa_other; default oa_comm) from the NCBI FTP
mirror, along with the merged filelist written as filelists.parquet. Archives
already on disk are skipped, so an interrupted run can resume.

NCBI asks bulk clients to identify themselves; set --email or DOVMED_EMAIL
to include a contact address in the User-Agent header.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("output-dir", "data", "base directory; archives land under [output-dir]/pmc_oa/[subset]/")
	downloadCmd.Flags().Int("max-connections", 5, "maximum parallel archive downloads")
	downloadCmd.Flags().Duration("timeout", 0, "HTTP request timeout per archive (default 10m)")
	downloadCmd.Flags().String("email", "", "contact address for the User-Agent header")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	subsets := args
	if len(subsets) == 0 {
		subsets = []string{"oa_comm"}
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	maxConnections, _ := cmd.Flags().GetInt("max-connections")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		email = viper.GetString("email")
	}

	cfg := types.DownloadConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: httputil.UserAgent(email),
		},
		OutputDir:      outputDir,
		MaxConnections: maxConnections,
	}

	client := &http.Client{Timeout: cfg.Timeout}
	d := download.New(client, cfg, "", nil)

	result, err := d.Run(context.Background(), subsets)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Download summary: %d downloaded, %d skipped, %d failed (total: %d, %.2f MB)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total(),
		float64(result.Bytes)/(1024*1024))
	if result.HasFailures() {
		return fmt.Errorf("%d archive(s) failed to download", result.Failed)
	}
	return nil
}
