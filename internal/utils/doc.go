// Package utils exposes helpers shared by the cloudsync commands.
//
// It houses the ConfigurationLoader and LoggerFactory abstractions that
// integrate Viper, CLOUDSYNC environment overrides, and zap logging for the
// CLI, the FlushingWriter that keeps sync outcome output unbuffered, and the
// CommandContextAccessor that carries the resolved configuration file path
// through command execution contexts.
package utils
