package palette

import (
	"errors"
	"fmt"
	"strings"
)

// Method names the algorithm that turns a raster into a palette.
type Method string

const (
	MethodBundle Method = "bundle"
	MethodKmeans Method = "kmeans"
)

var ErrUnknownMethod = errors.New("unknown palette method")

// ParseMethod accepts any casing; an empty value selects MethodBundle.
func ParseMethod(value string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(value))) {
	case "", MethodBundle:
		return MethodBundle, nil
	case MethodKmeans:
		return MethodKmeans, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, value)
	}
}
