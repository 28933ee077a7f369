package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from the given .env files into the
// process environment. With no arguments it loads the default .env file.
// Files are applied in order and later files take precedence, which allows
// layering a base file with environment-specific overrides.
func LoadEnv(files ...string) error {
	if err := godotenv.Overload(files...); err != nil {
		return errors.Join(ErrFailedToLoadEnvFile, err)
	}
	return nil
}

// MustLoadEnv works like LoadEnv but panics if loading fails. Useful during
// application startup where a missing env file is unrecoverable.
func MustLoadEnv(files ...string) {
	if err := LoadEnv(files...); err != nil {
		panic(fmt.Sprintf("Failed to load env files: %v", err))
	}
}

// ResetCache clears all cached configuration values, forcing subsequent Load
// calls to re-parse the environment. Intended for tests.
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	globalCache.values = make(map[string]any)
	globalCache.onces = make(map[string]*sync.Once)
}

// ForceReloadConfig re-parses the environment into v, bypassing and
// refreshing the cache entry for its type. Use after changing environment
// variables at runtime (tests, SIGHUP-style reloads).
func ForceReloadConfig[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	typeName := getTypeName[T]()

	globalCache.mu.Lock()
	delete(globalCache.values, typeName)
	delete(globalCache.onces, typeName)
	globalCache.mu.Unlock()

	return Load(v)
}
