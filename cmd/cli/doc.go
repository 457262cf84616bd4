// Package cli constructs the testnode command-line interface. It wires the
// Cobra command hierarchy to the Viper configuration loader, the zap logger,
// and the node session shared by the node subcommands.
package cli
