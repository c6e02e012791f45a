package main

import (
	"fmt"

	"github.com/spf13/cobra"

	dig_container "github.com/trezcool/masomo-lms/apps/api/di/dig"
	"github.com/trezcool/masomo-lms/core/quiz"
)

func (cli *commandLine) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Auto-submit the quiz attempts whose time ran out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.c.Invoke(func(res dig_container.Resources, sweeper *quiz.Sweeper) {
				defer func() { _ = res.Close() }()

				n := sweeper.Sweep(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "auto-submitted %d attempt(s)\n", n)
			})
		},
	}
}
