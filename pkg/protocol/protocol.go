package protocol

// Protocol represents a parsed protocol file.
type Protocol struct {
	SourcePath string // Path to the source file
	Config     Config // Protocol configuration (app, tags, etc.)
	Steps      []Step // Steps to execute
}

// Config represents protocol-level configuration.
type Config struct {
	App         string            `yaml:"app"` // Target application name or bundle identifier
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Tags        []string          `yaml:"tags"`
	Env         map[string]string `yaml:"env"`
	Timeout     int               `yaml:"timeout"` // Replay timeout in ms
}
