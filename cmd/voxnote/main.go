package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "voxnote",
		Short:         "Local-first voice note server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		if debug, _ := cmd.Flags().GetBool("debug"); debug || os.Getenv("VOXNOTE_DEBUG") != "" {
			log.SetLevel(log.DebugLevel)
		}
	}

	root.AddCommand(serveCmd(), exportCmd())
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
