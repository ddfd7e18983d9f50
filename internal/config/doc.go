// Package config loads and validates the YAML configuration of the intercom.
// Every section validates itself and reports the offending key, and session
// parameters are fixed for the lifetime of the process.
package config
