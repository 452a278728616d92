// prowaudit is the CI failure audit CLI: audit, report, serve, status.
//
// Usage:
//
//	prowaudit audit  --log-path <dir> [--output-path <dir>] [--stage <name>]
//	prowaudit report --database <path> [--output-path <dir>]
//	prowaudit serve  --database <path>
//	prowaudit status --database <path>
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
