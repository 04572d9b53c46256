package main

import (
	"fmt"
	_ "mixer/lib"
	"os"

	"github.com/spf13/cobra"
)

var Command = &cobra.Command{
	Use:   "mixer",
	Short: "mixer groups packets by key into time bounded windows.",
	Long: `mixer reads packets from its sources, holds packets sharing a key
for a mixing delay and emits every window as one batch to its sinks.`,
	SilenceUsage: true,
}

func main() {
	if err := Command.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
