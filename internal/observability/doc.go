// Package observability exposes Prometheus collectors for node initialization,
// command execution, and tool installs, plus a textfile exporter for one-shot
// CLI runs.
package observability
