package flags

import (
	"os"
	"strconv"
	"time"

	"github.com/loft-sh/log"
	flag "github.com/spf13/pflag"
)

// GlobalFlags holds the flags every command inherits.
type GlobalFlags struct {
	LogOutput string
	Debug     bool
	Silent    bool
}

const PipecatEnvPrefix = "PIPECAT_"

// SetGlobalFlags registers the global flags on the given flag set.
func SetGlobalFlags(flags *flag.FlagSet) *GlobalFlags {
	globalFlags := &GlobalFlags{}

	flags.StringVar(&globalFlags.LogOutput, "log-output", "plain", "The log format to use. Can be either plain, raw or json")
	flags.BoolVar(&globalFlags.Debug, "debug", false, "Prints the stack trace if an error occurs")
	flags.BoolVar(&globalFlags.Silent, "silent", false, "Run in silent mode and prevents any pipecat log output except panics & fatals")

	return globalFlags
}

// Defines a bool flag with specified name, environment variable, default value, and usage string.
// The argument variable points to a bool variable in which to store the value of the flag.
func BoolVarE(f *flag.FlagSet, variable *bool, name string, environmentVariable string, defaultValue bool, usage string) {
	f.BoolVar(variable, name, GetBoolEnv(environmentVariable, defaultValue), usage+". You can also use "+environmentVariable+" to set this")
}

func GetBoolEnv(environmentVariable string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(environmentVariable); exists {
		result, err := strconv.ParseBool(value)
		if err != nil {
			log.Default.Warnf("invalid boolean value %s for environment variable %s, falling back to default %v", value, environmentVariable, defaultValue)
			return defaultValue
		}
		return result
	}
	return defaultValue
}

// Defines a duration flag with specified name, environment variable, default value, and usage string.
// The argument variable points to a duration variable in which to store the value of the flag.
func DurationVarE(f *flag.FlagSet, variable *time.Duration, name string, environmentVariable string, defaultValue time.Duration, usage string) {
	f.DurationVar(variable, name, GetDurationEnv(environmentVariable, defaultValue), usage+". You can also use "+environmentVariable+" to set this")
}

func GetDurationEnv(environmentVariable string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(environmentVariable); exists {
		result, err := time.ParseDuration(value)
		if err != nil {
			log.Default.Warnf("invalid duration value %s for environment variable %s, falling back to default %v", value, environmentVariable, defaultValue)
			return defaultValue
		}
		return result
	}
	return defaultValue
}
