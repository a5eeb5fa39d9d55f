// Package confload loads the external "NAME=VALUE" configuration file
// (§6) into a config.Store. It is outside the core server per §1's
// scope boundary but is still needed to make a runnable binary.
//
// Grounded on original_source/server/readconfig.c's readConfig: one
// "name=value" pair per line, unrecognized names logged and skipped
// rather than failing the load. The decode step - a loosely typed map
// into a typed Go value - uses github.com/mitchellh/mapstructure, the
// same library the teacher's air.go uses to hydrate its Config struct
// from a parsed JSON map (mapstructure.Decode(m, a)).
package confload

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/ini.v1"

	"github.com/dieortin/http-server/config"
)

// Logger is the minimal sink used to report unrecognized parameters,
// matching the "Unrecognized parameter" printf in the original.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// rawConfig mirrors the recognized config-file parameter names as
// mapstructure tags, the decode target for the raw KEY=VALUE map.
type rawConfig struct {
	Address   string `mapstructure:"ADDRESS"`
	Port      string `mapstructure:"PORT"`
	Webroot   string `mapstructure:"WEBROOT"`
	NThreads  string `mapstructure:"NTHREADS"`
	QueueSize string `mapstructure:"QUEUE_SIZE"`
	MimeFile  string `mapstructure:"MIME_FILE"`
}

// recognizedNames is used to flag unrecognized parameters for logging,
// in the same spirit as readConfig's "Unrecognized parameter" message.
var recognizedNames = map[string]bool{
	"ADDRESS": true, "PORT": true, "WEBROOT": true,
	"NTHREADS": true, "QUEUE_SIZE": true, "MIME_FILE": true,
}

// Load parses path as a flat "NAME=VALUE" file (ini.v1 in no-section
// mode reads exactly this shape), decodes it into a config.Store.
// Unrecognized names are logged via log and otherwise ignored; absent
// parameters are simply never inserted (callers use
// Store.GetIntOption/IntOrDefault for the ones that have defaults).
func Load(path string, log Logger) (*config.Store, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, path)
	if err != nil {
		return nil, fmt.Errorf("confload: opening %s: %w", path, err)
	}

	section := cfg.Section("") // ini.v1's implicit default section holds top-level KEY=VALUE lines

	raw := make(map[string]interface{}, len(section.Keys()))
	for _, key := range section.Keys() {
		name := key.Name()
		if !recognizedNames[name] {
			if log != nil {
				log.Warn("unrecognized configuration parameter", map[string]interface{}{"name": name})
			}
			continue
		}
		raw[name] = key.Value()
	}

	var decoded rawConfig
	if err := mapstructure.Decode(raw, &decoded); err != nil {
		return nil, fmt.Errorf("confload: decoding %s: %w", path, err)
	}

	store := config.New()
	if err := addString(store, config.Address, decoded.Address); err != nil {
		return nil, err
	}
	if err := addString(store, config.Webroot, decoded.Webroot); err != nil {
		return nil, err
	}
	if err := addString(store, config.MimeFile, decoded.MimeFile); err != nil {
		return nil, err
	}
	if err := addInt(store, config.Port, decoded.Port); err != nil {
		return nil, err
	}
	if err := addInt(store, config.NThreads, decoded.NThreads); err != nil {
		return nil, err
	}
	if err := addInt(store, config.QueueSize, decoded.QueueSize); err != nil {
		return nil, err
	}

	return store, nil
}

func addString(store *config.Store, opt config.Option, value string) error {
	if value == "" {
		return nil
	}
	if err := store.AddString(opt.String(), value); err != nil {
		return fmt.Errorf("confload: %s: %w", opt, err)
	}
	return nil
}

func addInt(store *config.Store, opt config.Option, value string) error {
	if value == "" {
		return nil
	}
	n, err := config.ParseInt32(value)
	if err != nil {
		return fmt.Errorf("confload: parameter %s: %w", opt, err)
	}
	if err := store.AddInt(opt.String(), n); err != nil {
		return fmt.Errorf("confload: %s: %w", opt, err)
	}
	return nil
}
