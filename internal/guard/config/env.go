package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix shared by all guard environment variables.
//
// Recognized variables:
//
//	LOOPGUARD_THRESHOLD          uint64  overflow threshold
//	LOOPGUARD_WARN_ONCE          bool    one-shot policy
//	LOOPGUARD_STACK_TRACE        bool    stack capture in diagnostics
//	LOOPGUARD_BREAK_ON_OVERFLOW  bool    circuit breaking
const EnvPrefix = "LOOPGUARD_"

// LoadEnv overrides c with any guard settings present in the environment.
//
// Variables that are unset leave the corresponding field untouched, so LoadEnv
// composes with programmatic configuration. Malformed values produce an error
// and leave c unchanged; the caller decides whether that is fatal. The fired
// flag is never loaded from the environment; it is runtime state, not
// configuration.
func (c *Config) LoadEnv() error {
	k := koanf.New(".")

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		// LOOPGUARD_BREAK_ON_OVERFLOW -> break_on_overflow
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Parse everything up front so a malformed variable cannot leave c
	// half-applied.
	var (
		threshold uint64
		flags     = map[string]bool{}
	)
	if k.Exists("threshold") {
		v, err := strconv.ParseUint(k.String("threshold"), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sTHRESHOLD: %w", EnvPrefix, err)
		}
		threshold = v
	}
	for key, envName := range map[string]string{
		"warn_once":         "WARN_ONCE",
		"stack_trace":       "STACK_TRACE",
		"break_on_overflow": "BREAK_ON_OVERFLOW",
	} {
		if !k.Exists(key) {
			continue
		}
		v, err := strconv.ParseBool(k.String(key))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, envName, err)
		}
		flags[key] = v
	}

	if k.Exists("threshold") {
		c.SetThreshold(threshold)
	}
	if v, ok := flags["warn_once"]; ok {
		c.SetWarnOnce(v)
	}
	if v, ok := flags["stack_trace"]; ok {
		c.SetStackTrace(v)
	}
	if v, ok := flags["break_on_overflow"]; ok {
		c.SetBreakOnOverflow(v)
	}

	return nil
}
