// Package nodes provides the node facing subcommands of the testnode CLI:
// listing the inventory, probing nodes, running commands, and resolving tools.
package nodes
