package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "bitesize"}

	root.AddCommand(processCMD(), migrateCMD())
	_ = root.Execute()
}
