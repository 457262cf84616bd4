// Package inventory loads named node descriptors from a YAML file and builds
// nodes from them on demand.
package inventory
