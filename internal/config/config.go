package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	DatabaseURL    string
	AllowedOrigins []string
	MaxPlayers     int
	RoomTimeout    time.Duration
	SweepInterval  time.Duration
	GraceDelay     time.Duration
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.AllowedOrigins = splitCSV(getenv("ALLOWED_ORIGINS", "http://localhost:3008,http://127.0.0.1:3008"))
	c.MaxPlayers = getint("MAX_PLAYERS", 50)
	c.RoomTimeout = getdur("ROOM_TIMEOUT", 30*time.Minute)
	c.SweepInterval = getdur("SWEEP_INTERVAL", 5*time.Minute)
	c.GraceDelay = getdur("GRACE_DELAY", 500*time.Millisecond)
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
