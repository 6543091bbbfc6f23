// Package config resolves settings from, in increasing priority, built-in
// defaults, config/app.json, .env, the process environment and Set.
//
// Keys are upper case. Accessors load lazily, so reading config never
// needs an explicit Load unless the caller wants the error.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	loadOnce sync.Once
	loadErr  error

	mu        sync.RWMutex
	values    = defaultValues()
	overrides = map[string]string{}
)

// Load reads config/app.json and .env relative to the working directory.
// Missing files are not an error. Only the first call does any work.
func Load() error {
	loadOnce.Do(func() {
		loadErr = load("config/app.json", ".env")
	})
	return loadErr
}

func load(jsonPath, envPath string) error {
	merged := defaultValues()
	put := func(k, v string) {
		if k = strings.ToUpper(strings.TrimSpace(k)); k != "" {
			merged[k] = strings.TrimSpace(v)
		}
	}

	fromJSON, err := readJSON(jsonPath)
	if err != nil {
		return err
	}
	for k, v := range fromJSON {
		put(k, v)
	}

	fromDotenv, err := godotenv.Read(envPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: %s: %w", envPath, err)
	}
	for k, v := range fromDotenv {
		put(k, v)
	}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			put(k, v)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for k, v := range overrides {
		merged[k] = v
	}
	values = merged
	return nil
}

// readJSON flattens a top-level JSON object of scalars to strings.
func readJSON(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		switch v := v.(type) {
		case string:
			out[k] = v
		case bool:
			out[k] = strconv.FormatBool(v)
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return out, nil
}

// Get returns key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	_ = Load()
	mu.RLock()
	v := values[key]
	mu.RUnlock()
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

// Int falls back on unset or malformed values.
func Int(key string, fallback int) int {
	n, err := strconv.Atoi(Get(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

// Bool accepts true/false, 1/0, yes/no and on/off.
func Bool(key string, fallback bool) bool {
	switch strings.ToLower(Get(key, "")) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}

// Duration reads "90s" or "168h". A bare integer is seconds.
func Duration(key string, fallback time.Duration) time.Duration {
	raw := Get(key, "")
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Set pins key to value for the rest of the process, including across a
// later Load. Used by tests and CLI flags.
func Set(key, value string) {
	_ = Load()
	key = strings.ToUpper(key)
	mu.Lock()
	defer mu.Unlock()
	overrides[key] = value
	values[key] = value
}
