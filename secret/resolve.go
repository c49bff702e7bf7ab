package secret

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Sentinel errors for secret resolution.
var (
	// ErrEmptySecret indicates a reference resolved to an empty value.
	ErrEmptySecret = errors.New("secret: resolved value is empty")

	// ErrMissingEnv indicates a referenced environment variable is unset.
	ErrMissingEnv = errors.New("secret: environment variable not set")
)

// Resolve turns a configuration reference into its secret material.
//
// Supported forms:
//   - "env://NAME": the value of the NAME environment variable
//   - "file://path": the contents of the file at path
//   - anything else: returned as-is after strict ${VAR} expansion
//
// An empty result is an error: silently-empty credentials produce
// confusing downstream denials.
func Resolve(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "env://"):
		name := strings.TrimPrefix(ref, "env://")
		value, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingEnv, name)
		}
		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("%w: env://%s", ErrEmptySecret, name)
		}
		return value, nil

	case strings.HasPrefix(ref, "file://"):
		path := strings.TrimPrefix(ref, "file://")
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config.
		if err != nil {
			return "", fmt.Errorf("secret: read %s: %w", path, err)
		}
		value := strings.TrimSpace(string(data))
		if value == "" {
			return "", fmt.Errorf("%w: file://%s", ErrEmptySecret, path)
		}
		return value, nil

	default:
		expanded, err := ExpandEnvStrict(ref)
		if err != nil {
			return "", err
		}
		return expanded, nil
	}
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands `${VAR}` placeholders in s from the
// environment. Every referenced variable must be set; missing ones are
// reported together, sorted. `$$` escapes a literal `$`.
func ExpandEnvStrict(s string) (string, error) {
	const escaped = "\x00agentgate_dollar\x00"
	s = strings.ReplaceAll(s, "$$", escaped)

	missing := make(map[string]struct{})
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing[name] = struct{}{}
			return match
		}
		return value
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(names, ", "))
	}

	return strings.ReplaceAll(out, escaped, "$"), nil
}
