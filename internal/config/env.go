package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

// SubstituteEnv replaces every ${NAME} in input with the value of the
// environment variable NAME. Any unset variable is an error naming all of
// the missing ones.
func SubstituteEnv(input string) (string, error) {
	missing := make(map[string]bool)

	out := envRef.ReplaceAllStringFunc(input, func(ref string) string {
		name := envRef.FindStringSubmatch(ref)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing[name] = true
			return ref
		}
		return val
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("environment variables not set: %s", strings.Join(names, ", "))
	}
	return out, nil
}
