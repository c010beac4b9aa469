package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/questhold/questhold/internal/library/domain"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "scan [library-id...]",
		Short: "Scan libraries in the foreground",
		Long:  "Scan the given libraries, or every library when none is named, and print the outcome of each scan.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid library id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}

			scanType := domain.ScanTypeQuick
			if full {
				scanType = domain.ScanTypeFull
			}

			return ctx.withApp(cmd.Context(), func(app *App) error {
				libraries, err := app.Libraries.ListLibraries(cmd.Context())
				if err != nil {
					return err
				}
				names := make(map[uuid.UUID]string, len(libraries))
				for _, library := range libraries {
					names[library.ID] = library.Name
				}
				if len(ids) == 0 {
					for _, library := range libraries {
						ids = append(ids, library.ID)
					}
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No libraries configured")
					return nil
				}

				rows := make([][]string, 0, len(ids))
				for _, id := range ids {
					progress, err := app.Scans.ScanLibrary(cmd.Context(), id, scanType)
					if err != nil {
						return fmt.Errorf("scan %s: %w", id, err)
					}
					rows = append(rows, scanRow(names[id], progress))
				}

				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Library", "Status", "New", "Removed", "Unmatched", "Updated", "Failed"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Refresh metadata of existing games too")
	return cmd
}

func scanRow(name string, progress *domain.LibraryScanProgress) []string {
	if name == "" {
		name = progress.LibraryID.String()
	}
	row := []string{name, string(progress.Status), "-", "-", "-", "-", "-"}
	if r := progress.Result; r != nil {
		row[2] = strconv.Itoa(r.New)
		row[3] = strconv.Itoa(r.Removed)
		row[4] = strconv.Itoa(r.Unmatched)
		if r.IsFull() {
			row[5] = strconv.Itoa(r.Updated)
		}
		row[6] = strconv.Itoa(r.Failed)
	}
	if progress.Message != "" {
		row[1] += ": " + progress.Message
	}
	return row
}
