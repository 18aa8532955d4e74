// internal/util/block.go
package util

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBlockArg interprets a user-supplied head block argument. Empty input
// and "latest" mean the current chain head (nil); decimal and 0x-prefixed
// hex numbers pin an explicit height.
func ParseBlockArg(arg string) (*uint64, error) {
	arg = strings.TrimSpace(strings.ToLower(arg))

	if arg == "" || arg == "latest" {
		return nil, nil
	}

	if strings.HasPrefix(arg, "0x") {
		n, err := strconv.ParseUint(strings.TrimPrefix(arg, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid hex block number %q", arg)
		}
		return &n, nil
	}

	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid block number %q (use decimal, 0x hex, or \"latest\")", arg)
	}
	return &n, nil
}
