// Package app wires the pdq command line to the pipeline: configuration,
// logging, stage registration, graph persistence, run snapshots, metrics
// and drawing.
package app
