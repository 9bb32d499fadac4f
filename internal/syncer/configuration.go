package syncer

import "strings"

const (
	defaultWatchIntervalSecondsConstant   = 60
	configurationNameKeyConstant          = "name"
	configurationWatchKeyConstant         = "watch"
	configurationIntervalKeyConstant      = "interval"
	configurationCommitMessageKeyConstant = "commit_message"
	configurationKeySeparatorConstant     = "."
)

// CommandConfiguration captures persistent settings for the sync command.
type CommandConfiguration struct {
	RepositoryName  string `mapstructure:"name"`
	Watch           bool   `mapstructure:"watch"`
	IntervalSeconds int    `mapstructure:"interval"`
	CommitMessage   string `mapstructure:"commit_message"`
}

// DefaultCommandConfiguration returns baseline configuration values for the sync command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RepositoryName:  "",
		Watch:           false,
		IntervalSeconds: defaultWatchIntervalSecondsConstant,
		CommitMessage:   defaultCommitMessageConstant,
	}
}

// DefaultConfigurationValues exposes the sync defaults keyed beneath the provided configuration root.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + configurationKeySeparatorConstant + configurationNameKeyConstant:          defaults.RepositoryName,
		rootKey + configurationKeySeparatorConstant + configurationWatchKeyConstant:         defaults.Watch,
		rootKey + configurationKeySeparatorConstant + configurationIntervalKeyConstant:      defaults.IntervalSeconds,
		rootKey + configurationKeySeparatorConstant + configurationCommitMessageKeyConstant: defaults.CommitMessage,
	}
}

// Sanitize trims whitespace and applies defaults to unset configuration values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.RepositoryName = strings.TrimSpace(configuration.RepositoryName)
	sanitized.CommitMessage = strings.TrimSpace(configuration.CommitMessage)
	if len(sanitized.CommitMessage) == 0 {
		sanitized.CommitMessage = defaultCommitMessageConstant
	}
	if sanitized.IntervalSeconds <= 0 {
		sanitized.IntervalSeconds = defaultWatchIntervalSecondsConstant
	}
	return sanitized
}
