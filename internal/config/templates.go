package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# divtrack configuration

[api]
# Base URL of the dividend tracker backend (all endpoints are relative to it)
base_url = "http://localhost:8000/api"
# Per-request timeout
timeout = "10s"
# Client-side request rate limit (0 disables)
rate_limit_rps = 10.0
rate_burst = 10
# Consecutive failures before the circuit opens, and how long it stays open
breaker_failures = 5
breaker_timeout = "30s"

[market]
# History window in days
history_days = 30
# Number of recent dividends to request
dividend_limit = 10
# Ticker loaded when watch starts
default_ticker = "AAPL"

[cache]
# Cache quote/history/dividend responses
enabled = true
# Redis URL (redis://host:6379/0); empty uses an in-process cache
redis_url = ""
quote_ttl = "30s"
history_ttl = "10m"
dividends_ttl = "1h"

[session]
# Where the bearer token is kept: "file", "sqlite" or "memory"
token_backend = "file"
# Defaults to <config dir>/session.json and <config dir>/divtrack.db
token_path = ""
db_path = ""
# Re-read the account from the server after a tier upgrade
reconcile_after_upgrade = false
# Record logins, logouts, upgrades and payments in audit.log
audit_enabled = true

[log]
# debug, info, warn, error
level = "warn"
console = true
file = true
path = ""

[metrics]
# Serve Prometheus metrics during watch (e.g. ":9109"); empty disables
addr = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
