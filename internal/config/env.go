package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envReader reads typed settings from the process environment through
// viper. A variable that is set but does not parse keeps its default and is
// reported by Validate.
type envReader struct {
	v    *viper.Viper
	errs []string
}

func newEnv() *envReader {
	v := viper.New()
	v.AutomaticEnv()
	return &envReader{v: v}
}

// raw returns the trimmed value of key, or "" when it is unset or blank.
func (e *envReader) raw(key string) string {
	return strings.TrimSpace(e.v.GetString(key))
}

func (e *envReader) fail(key, value, want string) {
	e.errs = append(e.errs, fmt.Sprintf("%s=%q is not a valid %s", key, value, want))
}

func (e *envReader) str(key, def string) string {
	if s := e.raw(key); s != "" {
		return s
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	s := e.raw(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		e.fail(key, s, "integer")
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	s := e.raw(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		e.fail(key, s, "number")
		return def
	}
	return f
}

func (e *envReader) bool(key string, def bool) bool {
	s := e.raw(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		e.fail(key, s, "boolean")
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	s := e.raw(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		e.fail(key, s, "duration")
		return def
	}
	return d
}

// list splits a comma-separated value, dropping empty entries.
func (e *envReader) list(key string, def []string) []string {
	s := e.raw(key)
	if s == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (e *envReader) ints(key string, def []int) []int {
	parts := e.list(key, nil)
	if len(parts) == 0 {
		return def
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			e.fail(key, e.raw(key), "list of integers")
			return def
		}
		out = append(out, n)
	}
	return out
}
