package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/heapscope/heapscope/internal/profilestore"
)

func newShowCmd(cfg *serviceConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "show [profile-id]",
		Short: "List or print profiles from the archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if cfg.ArchiveDir == "" {
				return errors.New("no archive directory configured")
			}
			store, err := profilestore.Open(cfg.ArchiveDir)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				ids, err := store.List()
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			}

			data, err := store.Get(args[0])
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
