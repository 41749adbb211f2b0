// Package config holds the settings of a sitemapper run.
//
// Values are layered, lowest precedence first: built-in defaults
// (NewConfig), SITEMAPPER_* environment variables (ApplyEnv), the matching
// entry of the .sitemapper YAML file (SettingsFor), and finally flags the
// user passed explicitly on the command line.
package config
