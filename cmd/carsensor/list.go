package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/carsensor/internal/application"
	"github.com/ericfisherdev/carsensor/internal/domain/model"
)

// errNotAuthenticated is returned by protected commands when no session exists.
var errNotAuthenticated = errors.New("not logged in, run `carsensor login`")

// listFlags holds the list command's page and filter flags. Negative numeric
// values mean unset.
type listFlags struct {
	page     int
	brand    string
	model    string
	color    string
	minPrice int64
	maxPrice int64
	minYear  int
	maxYear  int
}

func (f listFlags) filter() model.Filter {
	out := model.Filter{Brand: f.brand, Model: f.model, Color: f.color}
	if f.minPrice >= 0 {
		out.MinPrice = &f.minPrice
	}
	if f.maxPrice >= 0 {
		out.MaxPrice = &f.maxPrice
	}
	if f.minYear >= 0 {
		out.MinYear = &f.minYear
	}
	if f.maxYear >= 0 {
		out.MaxYear = &f.maxYear
	}
	return out
}

func listCmd(flags *globalFlags) *cobra.Command {
	var lf listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of listings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := wire(ctx, flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			return runList(ctx, rt.core, lf, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&lf.page, "page", 1, "Page number (1-indexed)")
	cmd.Flags().StringVar(&lf.brand, "brand", "", "Filter by brand (substring)")
	cmd.Flags().StringVar(&lf.model, "model", "", "Filter by model (substring)")
	cmd.Flags().StringVar(&lf.color, "color", "", "Filter by color (substring)")
	cmd.Flags().Int64Var(&lf.minPrice, "min-price", -1, "Minimum price in yen")
	cmd.Flags().Int64Var(&lf.maxPrice, "max-price", -1, "Maximum price in yen")
	cmd.Flags().IntVar(&lf.minYear, "min-year", -1, "Minimum model year")
	cmd.Flags().IntVar(&lf.maxYear, "max-year", -1, "Maximum model year")
	return cmd
}

// runList fetches and prints one page.
func runList(ctx context.Context, core *application.Core, lf listFlags, out io.Writer) error {
	if !core.Decide(ctx).Allow {
		return errNotAuthenticated
	}
	if lf.page < 1 {
		return fmt.Errorf("--page must be >= 1, got %d", lf.page)
	}

	state, err := core.FetchFiltered(ctx, lf.page, lf.filter())
	if err != nil {
		return err
	}

	switch state.Status {
	case model.StatusLoaded:
		return printPage(out, state.Result)
	case model.StatusFailed:
		if state.Err == model.ErrorKindSessionExpired {
			// Consume the redirect; the exit code carries it.
			select {
			case <-core.Redirects():
			default:
			}
			return errSessionExpired
		}
		return errors.New(state.Err.Message())
	}
	return fmt.Errorf("unexpected retrieval state %q", state.Status)
}

func printPage(out io.Writer, r *model.PageResult) error {
	if len(r.Items) == 0 {
		if pages := r.TotalPages(); pages > 0 && r.Page > pages {
			return fmt.Errorf("page %d is out of range (1-%d)", r.Page, pages)
		}
		fmt.Fprintln(out, "No cars found")
		fmt.Fprintln(out, "The scraper will populate data shortly.")
		return nil
	}

	rows := make([][]string, 0, len(r.Items))
	for _, l := range r.Items {
		rows = append(rows, []string{
			strconv.FormatInt(l.ID, 10),
			l.Brand,
			l.Model,
			l.DisplayYear(),
			l.DisplayPrice(),
			l.DisplayColor(),
			l.URL,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Brand", "Model", "Year", "Price", "Color", "Link").
		Rows(rows...)
	fmt.Fprintln(out, t.Render())

	if pages := r.TotalPages(); pages > 1 {
		fmt.Fprintf(out, "Page %d of %d (%d total)\n", r.Page, pages, r.Total)
	}
	return nil
}
