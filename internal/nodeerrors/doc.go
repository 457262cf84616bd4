// Package nodeerrors defines the failure taxonomy shared by nodes, connection
// descriptors, and the tool registry. Callers match sentinel values with
// errors.Is and typed failures with errors.As.
package nodeerrors
