// Command wkshp bundles the workshop helpers: querying the VASP task database,
// replaying recorded runs in workflow templates and drawing workflow graphs.
package main

import (
	"log"
	"os"

	"github.com/matflow/wkshp/internal/config"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Printf("warning: %v", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
