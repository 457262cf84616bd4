// Package tools resolves and installs node capabilities.
//
// A Registry caches one tool instance per capability key for a single host.
// Requests name a compiled tool (ByType), a previously resolved key (ByKey),
// or a script descriptor (ByScript). Construction and install run at most
// once per key even under concurrent resolution.
package tools
