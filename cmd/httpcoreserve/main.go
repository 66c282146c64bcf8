package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/neoteroi/httpcore/internal/logging"
)

func main() {
	var debug bool

	root := &cobra.Command{
		Use:           "httpcoreserve",
		Short:         "Run an HTTP/1.1 server built on the httpcore core",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output in the logs")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		logging.Configure(debug)
		return nil
	}

	root.AddCommand(ServeCommand())

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("httpcoreserve exiting")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
