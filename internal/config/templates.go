package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "ring":
		return ringTemplate, nil
	case "chain":
		return chainTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const ringTemplate = `name = "shackles.ring"
peers = ["127.0.0.1:9001", "127.0.0.1:9002", "127.0.0.1:9003"]
close_ring = true
bind_concurrency = 0
admin_listen_addr = "127.0.0.1:7070"
cors_origins = ["http://localhost:3000"]
dial_timeout = "2s"
link_max_dial_attempts = 5
link_backoff_initial = "100ms"
link_backoff_max = "2s"
`

const chainTemplate = `name = "shackles.chain"
peers = ["127.0.0.1:9101", "127.0.0.1:9102", "127.0.0.1:9103", "127.0.0.1:9104"]
close_ring = false
bind_concurrency = 2
admin_listen_addr = ""
link_max_dial_attempts = 3
link_backoff_initial = "50ms"
`
