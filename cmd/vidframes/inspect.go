package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/maauso/vidframes/internal/archive"
	"github.com/maauso/vidframes/internal/config"
)

func newPartsCommand(logLevel *string) *cobra.Command {
	var part string

	cmd := &cobra.Command{
		Use:   "parts",
		Short: "List the fragments the archive resolves to, in assembly order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkPart(part); err != nil {
				return err
			}
			deps, _, err := setup(cmd, *logLevel)
			if err != nil {
				return err
			}
			parts, err := deps.Service.Parts(part)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderParts(parts))
			return nil
		},
	}
	cmd.Flags().StringVar(&part, "part", "", "Path to any one part of the archive")
	return cmd
}

func newEntriesCommand(logLevel *string) *cobra.Command {
	var part string

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List the media entries that would be decoded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkPart(part); err != nil {
				return err
			}
			deps, _, err := setup(cmd, *logLevel)
			if err != nil {
				return err
			}
			entries, err := deps.Service.Entries(cmd.Context(), part)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderEntries(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&part, "part", "", "Path to any one part of the archive")
	return cmd
}

func checkPart(part string) error {
	if part == "" {
		return config.ErrPartNotFound
	}
	info, err := os.Stat(part)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", config.ErrPartNotFound, part)
	}
	return nil
}

func renderParts(parts []archive.Fragment) string {
	rows := make([][]string, 0, len(parts))
	for i, p := range parts {
		size := "-"
		if info, err := os.Stat(p.Path); err == nil {
			size = strconv.FormatInt(info.Size(), 10)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			filepath.Base(p.Path),
			string(p.Convention),
			size,
		})
	}
	return renderTable(
		[]string{"#", "Fragment", "Convention", "Bytes"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	)
}

func renderEntries(entries []archive.MediaEntry) string {
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			e.Name,
			e.LogicalName,
			strconv.FormatUint(e.RawSize, 10),
		})
	}
	return renderTable(
		[]string{"#", "Entry", "Video", "Bytes"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	)
}
