// Package main hosts the arista CLI entrypoint and command graph.
//
// The root command transcodes one or more inputs for a device preset through
// the workflow manager. Subcommands (and the equivalent root flags) cover the
// administrative modes: device and preset listings, source inspection, preset
// package installation and reset, input discovery, job history and
// configuration scaffolding. Those modes never start the orchestrator.
package main
