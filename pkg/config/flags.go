package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBindings maps command-line flags to configuration keys.
var flagBindings = []struct {
	flag  string
	key   string
	usage string
}{
	{"http-port", "http.port", "public HTTP port"},
	{"management-port", "management.port", "management HTTP port"},
	{"db-url", "database.url", "MongoDB connection URL"},
	{"db-name", "database.database_name", "MongoDB database name"},
	{"counter-backend", "counter.backend", "sequential counter backend (mongodb, redis, memory)"},
	{"log-level", "observability.log_level", "log level (debug, info, warn, error)"},
	{"log-format", "observability.log_format", "log format (json, text)"},
	{"maintenance", "maintenance.enabled", "start with the maintenance gate closed"},
}

// RegisterFlags adds the configuration override flags to flags. Their defaults are zero values:
// only flags set explicitly take part in loading.
func RegisterFlags(flags *pflag.FlagSet) {
	for _, b := range flagBindings {
		if flags.Lookup(b.flag) != nil {
			continue
		}
		switch b.key {
		case "http.port", "management.port":
			flags.Int(b.flag, 0, b.usage)
		case "maintenance.enabled":
			flags.Bool(b.flag, false, b.usage)
		default:
			flags.String(b.flag, "", b.usage)
		}
	}
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for _, b := range flagBindings {
		flag := l.flags.Lookup(b.flag)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(b.key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}
	return nil
}
