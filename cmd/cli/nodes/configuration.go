package nodes

const (
	probeParallelismKeyConstant = "parallelism"
	defaultProbeParallelism     = 4
)

// ProbeConfiguration captures configuration for the probe command.
type ProbeConfiguration struct {
	Parallelism int `mapstructure:"parallelism"`
}

// DefaultConfigurationValues returns default probe settings under the given key prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	return map[string]any{
		prefix + "." + probeParallelismKeyConstant: defaultProbeParallelism,
	}
}
