// =============================================================================
// Transmittal Log - Main Entry Point
// =============================================================================
//
// USAGE:
//   transmittal serve       - Run the HTTP API for the transmittal form
//   transmittal submit      - Record a transmittal from a file
//   transmittal reconcile   - Render documents left pending
//   transmittal version     - Display the application version
//
// LAYOUT:
//   cmd/           CLI commands (Cobra) and component wiring
//   internal/      core logic, not for external import
//   pkg/docstore   document repository (filesystem, S3)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/transmittal-log/cmd"
)

func main() {
	cmd.Execute()
}
