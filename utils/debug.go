package utils

import (
	"os"
	"strings"
)

// IsDebugEnabled returns true when NPASTE_DEBUG is truthy, otherwise
// true unless GIN_MODE=release
func IsDebugEnabled() bool {
	switch strings.ToLower(os.Getenv("NPASTE_DEBUG")) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return os.Getenv("GIN_MODE") != "release"
}
