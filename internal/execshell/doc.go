// Package execshell provides the shell sessions nodes run commands through.
//
// LocalShell wraps os/exec for the current machine and SSHShell multiplexes
// sessions over one golang.org/x/crypto/ssh client for remote nodes. Both
// satisfy Shell, which exposes connect, run, mkdir, and close primitives.
package execshell
