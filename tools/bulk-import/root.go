package main

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yashrajoria/construction-backend/services/import-service/clients"
)

type globalOptions struct {
	apiURL  string
	token   string
	timeout time.Duration
}

func (o *globalOptions) client() (*clients.SiteClient, error) {
	if o.apiURL == "" {
		return nil, errors.New("--api-url or SITE_API_URL is required")
	}
	return clients.NewSiteClient(strings.TrimRight(o.apiURL, "/"), o.token, o.timeout), nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "bulk-import",
		Short:         "Bulk import site activities and labours from spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", os.Getenv("SITE_API_URL"), "Site backend base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("SITE_API_TOKEN"), "Bearer token for the site backend")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per-request timeout")

	cmd.AddCommand(
		newImportCmd(opts, "activities"),
		newImportCmd(opts, "labours"),
		newTemplateCmd(),
		newMigrateHistoryCmd(),
	)
	return cmd
}
