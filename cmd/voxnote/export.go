package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxnote/voxnote/internal/config"
)

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Dump all notes as JSON to stdout",
		Long: "Writes the full note collection, lock pins included, to stdout. " +
			"The output is a complete backup of the configured store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return export()
		},
	}
}

func export() error {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	notes, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	all, err := notes.List(ctx)
	if err != nil {
		return fmt.Errorf("read notes: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(all)
}
