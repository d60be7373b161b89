package domain

// Settings contains user-selectable runtime configuration.
type Settings struct {
	ServerURL           string `json:"serverUrl"`
	ChannelName         string `json:"channelName"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds"`
	LogLevel            string `json:"logLevel"`
}
