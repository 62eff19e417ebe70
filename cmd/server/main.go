// Command server runs the WhatsApp HTTP bridge: a WhatsApp web session, a
// small REST API over it, and automatic LLM replies for configured senders.
//
//	server serve --config config/config.yaml
//	server pair
//	server config init --config config/config.yaml
package main

import (
	"os"

	"github.com/vibin/wa-bridge/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Default().Error("Command failed", "error", err)
		os.Exit(1)
	}
}
