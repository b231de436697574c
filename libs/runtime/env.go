package runtime

import "os"

// Getenv is used by tools that don't pull in libs/config.
func Getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
