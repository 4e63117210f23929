package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/support"
)

// Credentials are read from the environment (optionally populated from .env).
type Credentials struct {
	Email             string
	IPHubToken        string
	RedisURL          string
	GeoLiteLicenseKey string
}

func LoadCredentials() Credentials {
	return Credentials{
		Email:             strings.TrimSpace(support.GetEnv("EMAIL", "")),
		IPHubToken:        strings.TrimSpace(support.GetEnv("IPHUB_TOKEN", "")),
		RedisURL:          strings.TrimSpace(support.GetEnv("REDIS_URL", "")),
		GeoLiteLicenseKey: strings.TrimSpace(support.GetEnv("GEOLITE_LICENSE_KEY", "")),
	}
}

var ErrInvalidEmail = errors.New("config: contact email is not valid")

// ValidateEmail rejects empty and malformed addresses. GetIPIntel bans
// clients that send a made up contact address.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: EMAIL is not set", ErrInvalidEmail)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}
