// Package config defines the chat server's environment-driven configuration.
package config

import (
	"fmt"
	"time"
)

//go:generate go run github.com/avbezrukov/linechat/cmd/config_generator unix settings.env
//go:generate go run github.com/avbezrukov/linechat/cmd/config_generator windows settings.bat

// Config holds every tunable the chat engine and its listener need. Field
// tags follow the same convention the rest of this module's ambient stack
// uses: envconfig reads Host/Port/etc. from the environment, val is the
// default baked into the generated settings file, and description documents
// the field for operators.
type Config struct {
	Host string `envconfig:"SERVER_HOST" required:"true" val:"0.0.0.0" description:"The hostname or address the chat listener binds to."`
	Port string `envconfig:"SERVER_PORT" required:"true" val:"5190" description:"The TCP port the chat listener binds to."`

	DefaultNamePrefix string `envconfig:"DEFAULT_NAME" required:"true" val:"Anonymous" description:"Prefix used to mint a default display name (Anonymous_<N>) for a newly connected user who does not introduce themselves with a valid name."`
	GreetingMessage   string `envconfig:"GREETING_MESSAGE" required:"true" val:"Welcome to Test Server" description:"Message appended after the joining user's name in their welcome line."`

	HistorySize int `envconfig:"HISTORY_SIZE" required:"true" val:"20" description:"Capacity of the room history buffer and of each user's personal history buffer."`

	ReportsForBan               int `envconfig:"REPORTS_FOR_BAN" required:"true" val:"2" description:"Number of distinct reports against a user that triggers an automatic ban."`
	BanDurationSeconds          int `envconfig:"BAN_DURATION" required:"true" val:"600" description:"Length of a ban, in seconds, once it is applied."`
	MessagesLimitInSpamPeriod   int `envconfig:"MESSAGES_LIMIT_IN_SPAM_PERIOD" required:"true" val:"5" description:"Maximum number of SEND commands a user may issue within one spam window before being throttled."`
	SpamPeriodSeconds           int `envconfig:"SPAM_PERIOD" required:"true" val:"10" description:"Length of the rolling spam window, in seconds."`

	ConnRatePerMinute float64 `envconfig:"CONN_RATE_PER_MINUTE" required:"true" val:"60" description:"Per-IP accept token-bucket refill rate, in new connections per minute, enforced before a socket is handed to the chat engine."`
	ConnBurst         int     `envconfig:"CONN_BURST" required:"true" val:"10" description:"Per-IP accept token-bucket burst size."`

	LogLevel string `envconfig:"LOG_LEVEL" required:"true" val:"info" description:"Logging granularity. Possible values: 'trace', 'debug', 'info', 'warn', 'error'."`
}

// BanDuration returns BanDurationSeconds as a time.Duration.
func (c Config) BanDuration() time.Duration {
	return time.Duration(c.BanDurationSeconds) * time.Second
}

// SpamPeriod returns SpamPeriodSeconds as a time.Duration.
func (c Config) SpamPeriod() time.Duration {
	return time.Duration(c.SpamPeriodSeconds) * time.Second
}

// Validate rejects configurations that would otherwise fail silently or
// misbehave at runtime.
func (c Config) Validate() error {
	switch {
	case c.Port == "":
		return fmt.Errorf("SERVER_PORT must not be empty")
	case c.HistorySize < 0:
		return fmt.Errorf("HISTORY_SIZE must not be negative")
	case c.ReportsForBan <= 0:
		return fmt.Errorf("REPORTS_FOR_BAN must be positive")
	case c.BanDurationSeconds <= 0:
		return fmt.Errorf("BAN_DURATION must be positive")
	case c.MessagesLimitInSpamPeriod <= 0:
		return fmt.Errorf("MESSAGES_LIMIT_IN_SPAM_PERIOD must be positive")
	case c.SpamPeriodSeconds <= 0:
		return fmt.Errorf("SPAM_PERIOD must be positive")
	case c.ConnRatePerMinute <= 0:
		return fmt.Errorf("CONN_RATE_PER_MINUTE must be positive")
	case c.ConnBurst <= 0:
		return fmt.Errorf("CONN_BURST must be positive")
	}
	return nil
}
