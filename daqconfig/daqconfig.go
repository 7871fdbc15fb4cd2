// Package daqconfig decodes the JSON configuration string passed to
// initialise_consumer into typed per-consumer configuration structs.
//
// The base contract (spec.md §6) requires two keys: packet_size (the
// cell size in bytes) and nof_cells (the desired ring capacity,
// rounded up to a power of two by package ring). Everything else is
// consumer-defined; consumers decode the same parsed map into their
// own struct with Decode.
package daqconfig

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Base holds the keys every consumer configuration must supply.
type Base struct {
	PacketSize int `mapstructure:"packet_size"`
	NofCells   int `mapstructure:"nof_cells"`
}

// Parsed wraps the raw decoded JSON object together with the
// already-extracted Base fields, so a consumer's initialise hook can
// use Base directly and still Decode the rest into its own struct.
type Parsed struct {
	Base Base
	raw  map[string]any
}

// Parse unmarshals a JSON configuration string and validates the base
// contract. It fails with a wrapped error if the string isn't valid
// JSON, isn't a JSON object, or is missing/misstates packet_size or
// nof_cells.
func Parse(jsonConfig string) (*Parsed, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonConfig), &raw); err != nil {
		return nil, fmt.Errorf("daqconfig: invalid JSON: %w", err)
	}

	var base Base
	if err := decode(raw, &base); err != nil {
		return nil, fmt.Errorf("daqconfig: decoding base fields: %w", err)
	}
	if base.PacketSize <= 0 {
		return nil, fmt.Errorf("daqconfig: packet_size must be a positive integer")
	}
	if base.NofCells <= 0 {
		return nil, fmt.Errorf("daqconfig: nof_cells must be a positive integer")
	}

	return &Parsed{Base: base, raw: raw}, nil
}

// Decode maps the full configuration object (base keys plus any
// consumer-specific ones) onto out, which must be a pointer to a
// struct tagged with `mapstructure:"..."` fields.
func (p *Parsed) Decode(out any) error {
	return decode(p.raw, out)
}

func decode(raw map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
