// Package schemas embeds the JSON schemas for league files and the published wire artifacts.
package schemas

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed *.schema.json
var files embed.FS

const (
	League      = "league.schema.json"
	MatchResult = "match_result.schema.json"
	RoundEvent  = "round_event.schema.json"
	Subscribe   = "subscribe.schema.json"
)

// Compile compiles one embedded schema by file name.
func Compile(name string) (*jsonschema.Schema, error) {
	raw, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return c.Compile(name)
}
