package config

import "os"

// MailConfig carries SMTP settings.  An empty Host means no mail server is
// available and the application falls back to logging outgoing messages.
type MailConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// LoadMailConfig reads SMTP settings from the environment.
func LoadMailConfig() MailConfig {
	return MailConfig{
		Host: os.Getenv("SMTP_HOST"),
		Port: getenv("SMTP_PORT", "587"),
		User: os.Getenv("SMTP_USER"),
		Pass: os.Getenv("SMTP_PASS"),
		From: getenv("SMTP_FROM", "noreply@budbook.local"),
	}
}
