// Package cfg decodes driver configuration maps (the [cache.drivers.<name>]
// style TOML tables) into typed structs.
package cfg

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by configuration structs that fill in their own
// defaults after decoding.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes the raw input map into the target pointer c. Durations may
// be given as strings ("5s") and numbers are converted leniently, since TOML
// integers arrive as int64. If c implements Setter, ApplyDefaults is called
// after decoding.
func Decode(input map[string]any, c any) error {
	config := &mapstructure.DecoderConfig{
		Result:           c,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode driver config: %w", err)
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}

	return nil
}

// Section returns the named sub-table of a driver map, or nil when it is
// absent or not a table.
func Section(drivers map[string]any, name string) map[string]any {
	if drivers == nil {
		return nil
	}
	section, ok := drivers[name].(map[string]any)
	if !ok {
		return nil
	}
	return section
}
