// Command admin runs the Masomo LMS maintenance tasks: migrations, user accounts, quiz imports and sweeps.
package main

import (
	"os"

	dig_container "github.com/trezcool/masomo-lms/apps/api/di/dig"
	"github.com/trezcool/masomo-lms/core"
)

func main() {
	cli := &commandLine{c: dig_container.New("ADMIN", core.NewConfig)}
	if err := cli.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
