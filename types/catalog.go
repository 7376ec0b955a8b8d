// Package types contains shared types used across the fix-acceptor harness
package types

// CatalogConfig represents a complete test catalog file.
// The same structure is accepted in YAML and TOML form.
type CatalogConfig struct {
	Suites []SuiteConfig `yaml:"suites" toml:"suites"`
}

// SuiteConfig represents one suite entry of a catalog
type SuiteConfig struct {
	ID          string       `yaml:"id" toml:"id"`
	Kind        Kind         `yaml:"kind" toml:"kind"`
	Description string       `yaml:"description,omitempty" toml:"description"`
	Server      string       `yaml:"server" toml:"server"`
	Client      string       `yaml:"client" toml:"client"`
	Channel     string       `yaml:"channel,omitempty" toml:"channel"`
	ServerArgs  []string     `yaml:"server_args,omitempty" toml:"server_args"`
	ClientArgs  []string     `yaml:"client_args,omitempty" toml:"client_args"`
	Tests       []TestConfig `yaml:"tests" toml:"tests"`
}

// TestConfig represents one test case entry of a suite
type TestConfig struct {
	Name     string `yaml:"name" toml:"name"`
	Script   string `yaml:"script,omitempty" toml:"script"`
	Template string `yaml:"template,omitempty" toml:"template"`
}
