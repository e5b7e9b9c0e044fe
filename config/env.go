package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// EnvLookup returns a lookup over the process environment backed by the
// variables in dotenvPath. Real environment variables win. A missing dotenv
// file is not an error.
func EnvLookup(dotenvPath string) (LookupFunc, error) {
	fileVars := map[string]string{}
	if dotenvPath != "" {
		vars, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			fileVars = vars
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read env file %s: %w", dotenvPath, err)
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}

// ApplyEnv overrides config values from environment variables
// (only if set and non-empty).
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	var errs []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
	seconds := func(key string, dst *float64) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %q is not a number", key, v))
			return
		}
		*dst = f
	}

	str("SRC_DIR", &c.SrcDir)
	str("AUTOEDIT_DIR", &c.AutoeditDir)
	seconds("TARGET", &c.Plan.Target)
	seconds("MIN", &c.Plan.Min)
	seconds("MAX", &c.Plan.Max)
	integer("SVT_PRESET", &c.Encode.SVTPreset)
	integer("SVT_CRF", &c.Encode.SVTCRF)
	integer("SVT_LP", &c.Encode.SVTLP)
	str("OPUS_BR", &c.Encode.OpusBitrate)
	str("TP", &c.Encode.TruePeak)
	str("FONTFILE", &c.Encode.FontFile)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
