package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Addr        string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool

	SMTP SMTPConfig

	CodeTTL         time.Duration
	ResendCooldown  time.Duration
	ProofTTL        time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
	Location        *time.Location
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled is false when no SMTP host is configured; codes are then only logged.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// Parse reads flags from args, with QSURVEY_* environment variables
// filling in anything not given on the command line.
func Parse(args []string) (cfg Config, err error) {
	flags := pflag.NewFlagSet("qsurvey", pflag.ContinueOnError)
	flags.String("host", "0.0.0.0", "listen host name")
	flags.Uint("port", 80, "listen port number")
	flags.String("db-url", "qsurvey.sqlite", "path to SQLite3 DB file")
	flags.String("token-secret", "", "secret key for token encryption and decryption")
	flags.Uint("token-ttl", 120, "token TTL in seconds")
	flags.Bool("debug", false, "log at DEBUG level")

	flags.String("smtp-host", "", "SMTP server host; empty logs codes instead of mailing them")
	flags.Int("smtp-port", 587, "SMTP server port")
	flags.String("smtp-user", "", "SMTP user name")
	flags.String("smtp-password", "", "SMTP password")
	flags.String("smtp-from", "Quick Survey <no-reply@localhost>", "sender address for verification codes")

	flags.Duration("code-ttl", 10*time.Minute, "lifetime of an emailed verification code")
	flags.Duration("resend-cooldown", time.Minute, "minimum delay between two codes for the same email")
	flags.Duration("proof-ttl", 30*time.Minute, "lifetime of a verified-email proof token")
	flags.Duration("poll-interval", 5*time.Second, "interval between survey status checks")
	flags.Int("poll-max-attempts", 5, "status checks before a waiting request gives up")
	flags.String("timezone", "Local", "time zone used to bucket answers by day")

	if err = flags.Parse(args); err != nil {
		return
	}

	v := viper.New()
	v.SetEnvPrefix("qsurvey")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err = v.BindPFlags(flags); err != nil {
		return
	}

	host := v.GetString("host")
	port := v.GetUint("port")
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.DBUrl = v.GetString("db-url")
	cfg.TokenSecret = v.GetString("token-secret")
	cfg.TokenTTL = time.Duration(v.GetUint("token-ttl")) * time.Second
	cfg.Debug = v.GetBool("debug")

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("smtp-host"),
		Port:     v.GetInt("smtp-port"),
		User:     v.GetString("smtp-user"),
		Password: v.GetString("smtp-password"),
		From:     v.GetString("smtp-from"),
	}

	cfg.CodeTTL = v.GetDuration("code-ttl")
	cfg.ResendCooldown = v.GetDuration("resend-cooldown")
	cfg.ProofTTL = v.GetDuration("proof-ttl")
	cfg.PollInterval = v.GetDuration("poll-interval")
	cfg.PollMaxAttempts = v.GetInt("poll-max-attempts")

	cfg.Location, err = time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		err = fmt.Errorf("invalid parameter -timezone: %w", err)
		return
	}

	if cfg.PollInterval <= 0 {
		err = fmt.Errorf("invalid parameter -poll-interval: %s is not positive", cfg.PollInterval)
		return
	}

	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter -token-secret")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
