package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/controllers/scene"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [scene.yaml]",
		Short: "Check that a scene file builds and its script parses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			s, err := loadScene(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entities, %d steps, OK\n",
				args[0], len(s.Runtime.Entities()), len(s.Script()))

			return nil
		},
	}
}

func loadScene(path string) (*scene.Scene, error) {
	f, err := scene.ParseFile(path)
	if err != nil {
		return nil, err
	}

	return scene.Build(f, scene.DefaultRegistry())
}
