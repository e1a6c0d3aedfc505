package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
	"github.com/yashrajoria/construction-backend/services/import-service/services"
	"github.com/yashrajoria/construction-backend/services/import-service/sheet"
)

func newTemplateCmd() *cobra.Command {
	var kindName, out string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an example upload sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseImportKind(kindName)
			if err != nil {
				return err
			}
			format := string(sheet.FormatXLSX)
			if strings.EqualFold(filepath.Ext(out), ".csv") {
				format = string(sheet.FormatCSV)
			}
			data, name, _, err := services.RenderTemplate(kind, format)
			if err != nil {
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", string(models.KindActivities), "activities or labours")
	cmd.Flags().StringVar(&out, "out", "", "Output file; .csv selects CSV, anything else xlsx")
	return cmd
}
