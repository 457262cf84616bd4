// Package process starts commands on a shell session and hands back a handle
// for synchronous or asynchronous result retrieval.
package process
