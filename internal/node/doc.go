// Package node models a local or remote test target.
//
// A Node owns one shell session and one tool registry. It initializes lazily
// on the first command, tool request, or platform query: it connects the
// shell, probes the platform with uname, expands and creates the per-run
// working directory, and then serves commands.
package node
