package config

import (
	"os"
	"strconv"
	"time"
)

// TimeoutConfig holds the three transport timeouts the spec calls out
// separately (§6.5): connect is short, read is intentionally long to
// tolerate large calendars, write sits in between.
type TimeoutConfig struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

type RetryConfig struct {
	Max int
}

type ResponseConfig struct {
	MaxBytes int64
}

type RedirectConfig struct {
	Max int
}

type CapabilitiesConfig struct {
	TTL time.Duration
}

type WellKnownConfig struct {
	Enabled bool
}

type SyncRangeConfig struct {
	BackDays    int
	ForwardDays int
}

// Config is the caller-provided configuration surface described in §6.5.
// Every field has a conservative default; hosts override via environment
// variables the way the teacher's config layer does.
type Config struct {
	Timeout      TimeoutConfig
	Retry        RetryConfig
	Response     ResponseConfig
	Redirect     RedirectConfig
	Capabilities CapabilitiesConfig
	WellKnown    WellKnownConfig
	SyncRange    SyncRangeConfig
	ICS          ICSConfig
	LogLevel     string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvInt64(key string, def int64) int64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load builds a Config from the environment, falling back to the defaults
// named in §6.5.
func Load() (*Config, error) {
	return &Config{
		Timeout: TimeoutConfig{
			Connect: getenvDuration("CALDAV_TIMEOUT_CONNECT", 30*time.Second),
			Read:    getenvDuration("CALDAV_TIMEOUT_READ", 300*time.Second),
			Write:   getenvDuration("CALDAV_TIMEOUT_WRITE", 60*time.Second),
		},
		Retry: RetryConfig{
			Max: getenvInt("CALDAV_RETRY_MAX", 2),
		},
		Response: ResponseConfig{
			MaxBytes: getenvInt64("CALDAV_RESPONSE_MAX_BYTES", 10*1024*1024),
		},
		Redirect: RedirectConfig{
			Max: getenvInt("CALDAV_REDIRECT_MAX", 5),
		},
		Capabilities: CapabilitiesConfig{
			TTL: getenvDuration("CALDAV_CAPABILITIES_TTL", time.Hour),
		},
		WellKnown: WellKnownConfig{
			Enabled: getenvBool("CALDAV_WELL_KNOWN_ENABLED", true),
		},
		SyncRange: SyncRangeConfig{
			BackDays:    getenvInt("CALDAV_SYNC_RANGE_BACK_DAYS", 365),
			ForwardDays: getenvInt("CALDAV_SYNC_RANGE_FORWARD_DAYS", 365*5),
		},
		ICS: ICSConfig{
			CompanyName: getenv("CALDAV_ICS_COMPANY_NAME", "caldavsync"),
			ProductName: getenv("CALDAV_ICS_PRODUCT_NAME", "caldavsync"),
			Version:     getenv("CALDAV_ICS_VERSION", "1.0.0"),
			Language:    getenv("CALDAV_ICS_LANGUAGE", "EN"),
		},
		LogLevel: getenv("CALDAV_LOG_LEVEL", "info"),
	}, nil
}
