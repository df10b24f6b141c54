package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/fast-track-solutions1/msi-teamhub/internal/config"
	"github.com/fast-track-solutions1/msi-teamhub/internal/db"
	"github.com/fast-track-solutions1/msi-teamhub/internal/ingestion"
	"github.com/fast-track-solutions1/msi-teamhub/internal/registry"
	"github.com/fast-track-solutions1/msi-teamhub/migrations"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		logger, err := config.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		return db.RunMigrations(cfg.Database, migrations.FS, logger)
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List importable entity types",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME")
		for _, model := range registry.Default().List() {
			fmt.Fprintf(w, "%s\t%s\n", model.Key, model.Name)
		}
		return w.Flush()
	},
}

var (
	templateModel string
	templateOut   string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write the import template of an entity type",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		content, err := a.service.Template(cmd.Context(), templateModel)
		if err != nil {
			return err
		}
		out := templateOut
		if out == "" {
			out = fmt.Sprintf("template_%s.xlsx", templateModel)
		}
		if err := os.WriteFile(out, content, 0o644); err != nil {
			return fmt.Errorf("failed to write template: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
		return nil
	},
}

var (
	importModel string
	importFile  string
	importUser  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a spreadsheet into an entity type",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("%w: %v", ingestion.ErrMissingFile, err)
		}
		defer f.Close()

		result, err := a.service.ImportFile(cmd.Context(), ingestion.Request{
			EntityKey:  importModel,
			FileName:   filepath.Base(importFile),
			ImportedBy: importUser,
			Data:       f,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status=%s inserted=%d updated=%d skipped=%d errors=%d success_rate=%.2f%% log=%s\n",
			result.Status, result.Inserted, result.Updated, result.Skipped, result.ErrorCount, result.SuccessRate(), result.RunID)
		for _, rowErr := range result.Errors {
			fmt.Fprintf(out, "  row %d: %s\n", rowErr.Row, rowErr.Error)
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", warning)
		}
		return nil
	},
}

var (
	reportRun string
	reportOut string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the row errors of an import run as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(reportRun)
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", reportRun, err)
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		if reportOut != "" {
			f, err := os.Create(reportOut)
			if err != nil {
				return fmt.Errorf("failed to create report: %w", err)
			}
			defer f.Close()
			out = f
		}

		report, err := a.reports.WriteErrorReport(cmd.Context(), id, out)
		if err != nil {
			return err
		}
		if reportOut != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows)\n", reportOut, report.RowsExported)
		}
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVar(&templateModel, "model", "", "entity type key")
	templateCmd.Flags().StringVar(&templateOut, "out", "", "output path (default template_<model>.xlsx)")
	_ = templateCmd.MarkFlagRequired("model")

	importCmd.Flags().StringVar(&importModel, "model", "", "entity type key")
	importCmd.Flags().StringVar(&importFile, "file", "", "spreadsheet to import (.xlsx or .csv)")
	importCmd.Flags().StringVar(&importUser, "user", "", "principal recorded on the import run")
	_ = importCmd.MarkFlagRequired("model")
	_ = importCmd.MarkFlagRequired("file")

	reportCmd.Flags().StringVar(&reportRun, "run", "", "import run id (log_id)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "output path (default stdout)")
	_ = reportCmd.MarkFlagRequired("run")
}
