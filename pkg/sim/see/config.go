package see

import "flag"

// Config represents configuration for see.
type Config struct {
	// Every reports the mouse once per this many ticks.
	Every int
	// Trail keeps the last positions of the mouse, 0 disables it.
	Trail int
}

var defaultConfig = Config{
	Every: 20,
	Trail: 200,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.Every, "see-every", defaultConfig.Every, "Report the mouse every N ticks")
	flag.IntVar(&defaultConfig.Trail, "see-trail", defaultConfig.Trail, "Number of trail points kept")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a default config.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}
