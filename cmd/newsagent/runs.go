package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"news-agent/internal/repo"
)

func runsCMD(load loader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the most recent pipeline runs from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required to list runs")
			}

			db, err := repo.NewDB(cmd.Context(), cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := repo.NewRunRepository(db.DB).RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tCATEGORY\tLANG\tRANGE\tARTICLES\tSTATUS\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s>%s\t%s..%s\t%d\t%s\t%s\n",
					r.CreatedAt.Format(time.RFC3339), r.Category, r.SourceLang, r.TargetLang,
					r.FromDate, r.ToDate, r.ArticleCount, r.Status, r.Duration.Round(time.Millisecond))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
