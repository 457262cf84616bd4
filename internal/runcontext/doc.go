// Package runcontext names a harness run and derives the working directory
// layout nodes create for it.
package runcontext
