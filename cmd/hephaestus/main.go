// Command hephaestus is the synchronous CLI entry point for the quality-
// gate pipeline, cleanup engine, and release pipeline: a thin cobra
// front end over the same internal/guardrails, internal/cleanup, and
// internal/release packages the REST and gRPC transports submit through
// internal/service, grounded on cli/cmd/ao's cobra command registry.
package main

import "os"

func main() {
	os.Exit(Execute())
}
