// Command shoplist serves a shared shopping list over HTTP and WebSocket.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
