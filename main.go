// =============================================================================
// Fiscal Report Transcriber - Main Entry Point
// =============================================================================
//
// USAGE:
//   transcriber process       - Transcribe all reports in the input directory
//   transcriber validate      - Validate the profiles without processing
//   transcriber version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Adapters, transcriber, writers and validation
//   - pkg/           : Shared file system utilities
//   - configs/       : One YAML profile per report layout
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/fiscal-transcriber/cmd"
)

func main() {
	cmd.Execute()
}
