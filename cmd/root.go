package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/clinic_backend/cmd/http"
	systemcmd "github.com/Alijeyrad/clinic_backend/cmd/system"
	"github.com/Alijeyrad/clinic_backend/pkg/constants"
)

// Version is stamped at build time:
//
//	go build -ldflags "-X github.com/Alijeyrad/clinic_backend/cmd.Version=v1.2.0"
var Version = "dev"

// NewRootCommand assembles the clinic command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   constants.AppName,
		Short: "Clinic administration backend for a single doctor's practice.",
		Long: `Clinic is the backend of a small practice. The doctor manages patients,
appointments, fees and diagnostic files; patients sign in to see their own
records and book visits.

Every config key can be overridden from the environment with the ` + constants.EnvPrefix + `_
prefix, e.g. ` + constants.EnvPrefix + `_DATABASE_HOST.`,
		Version:      Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "config.yaml", "config file path")

	root.AddCommand(
		httpcmd.NewHTTPCommand(),
		systemcmd.NewSystemCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s %s/%s)\n",
				constants.AppName, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
