// Command server runs the storefront API with no CLI around it, for
// container images that only ever serve.
package main

import (
	"os"

	"github.com/shashiranjanraj/storefront/internal/server"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

func main() {
	if err := server.Start(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
