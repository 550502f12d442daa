package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// sidecarAddress resolves the address of the running sidecar for the
// inspection commands: the --address flag wins, otherwise the configured
// listen address.
func sidecarAddress(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := loadRuntimeConfig()
	if err != nil {
		return "", err
	}
	return cfg.Server.ListenAddress, nil
}

// querySidecar performs a GET against the running sidecar and decodes the
// JSON response into v.
func querySidecar(address, path string, v any) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get("http://" + address + path)
	if err != nil {
		return fmt.Errorf("querying sidecar at %s: %w (is it running?)", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
