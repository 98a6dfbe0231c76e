package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy names a chunking strategy. Only headers-first exists.
type Strategy string

const HeadersFirst Strategy = "headers_first"

var ErrUnknownStrategy = errors.New("unknown chunking strategy")

// ParseStrategy validates a strategy name coming from configuration or a
// request. The empty string selects HeadersFirst.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(HeadersFirst), "headers-first":
		return HeadersFirst, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}
