// Package utils holds CLI plumbing shared by commands: a Viper backed
// ConfigurationLoader, a zap LoggerFactory, and a CommandContextAccessor for
// values resolved before a subcommand runs.
package utils
