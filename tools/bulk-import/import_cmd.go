package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
	"github.com/yashrajoria/construction-backend/services/import-service/services"
)

// logPrinter writes log lines from progress snapshots exactly once each.
type logPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed int
}

func (p *logPrinter) progress(o models.UploadOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ; p.printed < len(o.Log); p.printed++ {
		fmt.Fprintln(p.out, o.Log[p.printed])
	}
}

func printTally(w io.Writer, o *models.UploadOutcome) {
	if o.DryRun {
		fmt.Fprintln(w, "dry run: nothing was created")
	}
	fmt.Fprintf(w, "done: %d succeeded, %d failed, %d total\n", o.Success, o.Failed, o.Total)
}

func newImportCmd(global *globalOptions, use string) *cobra.Command {
	var (
		file       string
		project    string
		subproject string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Import %s from an .xlsx, .xls or .csv file", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseImportKind(use)
			if err != nil {
				return err
			}
			client, err := global.client()
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open %s: %w", file, err)
			}
			defer f.Close()

			svc := services.NewImportService(client, services.DefaultActivityLoop, services.DefaultLabourLoop, nil)
			printer := &logPrinter{out: cmd.OutOrStdout()}
			req := services.ImportRequest{
				ProjectRef:    project,
				SubprojectRef: subproject,
				DryRun:        dryRun,
			}

			zap.L().Info("starting import",
				zap.String("kind", string(kind)),
				zap.String("file", filepath.Base(file)),
				zap.String("project", project),
				zap.Bool("dry_run", dryRun),
			)
			run := svc.ImportActivities
			if kind == models.KindLabours {
				run = svc.ImportLabours
			}
			out, err := run(cmd.Context(), req, filepath.Base(file), f, printer.progress)
			if err != nil {
				return err
			}
			printer.progress(*out)
			printTally(cmd.OutOrStdout(), out)
			if cmd.Context().Err() != nil {
				return errors.New("import interrupted")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Spreadsheet to upload (required)")
	cmd.Flags().StringVar(&project, "project", "", "Project name or ID (required)")
	cmd.Flags().StringVar(&subproject, "subproject", "", "Subproject name or ID")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and validate rows without creating anything")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
