package config

import (
	_ "embed"
)

//go:embed config.example.yaml
var exampleYAML []byte

// Example returns the commented configuration file written by
// "tagscope config init". It matches Default.
func Example() []byte {
	return append([]byte(nil), exampleYAML...)
}

// MarshalYAML renders durations in their string form so that the output
// loads back through Load.
func (s ServerConfig) MarshalYAML() (any, error) {
	return struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		BodyLimit       string `yaml:"body_limit"`
		Debug           bool   `yaml:"debug"`
	}{
		Host:            s.Host,
		Port:            s.Port,
		ReadTimeout:     s.ReadTimeout.String(),
		WriteTimeout:    s.WriteTimeout.String(),
		ShutdownTimeout: s.ShutdownTimeout.String(),
		BodyLimit:       s.BodyLimit,
		Debug:           s.Debug,
	}, nil
}

// MarshalYAML renders the debounce as a duration string.
func (w WatchConfig) MarshalYAML() (any, error) {
	return struct {
		Debounce string `yaml:"debounce"`
	}{w.Debounce.String()}, nil
}
