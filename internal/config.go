package internal

import (
	"fmt"
	"time"
)

// Config is the process environment, one field per variable. Required
// fields fail fast at startup; pointers are optional features.
type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`

	CensoredWordsFile         *string `env:"CENSORED_WORDS_FILE"`
	ModerationCharReplacement string  `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	// Per-connection throttle overrides; absent means built-in limits.
	SendMessageLimit   *int `env:"SEND_MESSAGE_LIMIT"`
	EditMessageLimit   *int `env:"EDIT_MESSAGE_LIMIT"`
	DeleteMessageLimit *int `env:"DELETE_MESSAGE_LIMIT"`
	TypingLimit        *int `env:"TYPING_LIMIT"`

	DebugPort *int `env:"DEBUG_PORT"`
	SeedDemo  bool `env:"SEED_DEMO"`
}

// CharacterRune converts the replacement variable into the single rune
// the moderator masks with.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
