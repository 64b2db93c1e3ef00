// Command engine-cli is the reference harness for the LMSR and CLOB
// trading engines: one-shot quote/buy/place/book subcommands, a
// deterministic scenario runner, and an optional HTTP/WebSocket server.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
