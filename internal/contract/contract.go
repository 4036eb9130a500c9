// Package contract validates language model JSON replies against fixed schemas.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Veraticus/the-observer/internal/llm"
)

var printer = message.NewPrinter(language.English)

// ErrViolation is returned when a reply is not valid JSON or breaks its schema.
var ErrViolation = errors.New("reply violates contract")

// Contract is a compiled schema for one kind of model reply.
type Contract struct {
	schema *jsonschema.Schema
	name   string
}

// MustCompile compiles raw as a JSON Schema document named name.
func MustCompile(name, raw string) *Contract {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("failed to parse schema %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return &Contract{schema: schema, name: name}
}

// Decode strips any markdown wrapper from reply, validates it and unmarshals it into out.
func (c *Contract) Decode(reply string, out any) error {
	cleaned := llm.CleanJSON(reply)

	var instance any
	if err := json.Unmarshal([]byte(cleaned), &instance); err != nil {
		return fmt.Errorf("%w: %s: not JSON: %v", ErrViolation, c.name, err)
	}

	if err := c.schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrViolation, c.name, describe(err))
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrViolation, c.name, err)
	}
	return nil
}

func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var leaves []string
	collect(ve, &leaves)
	return strings.Join(leaves, "; ")
}

func collect(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(printer)))
		return
	}
	for _, cause := range ve.Causes {
		collect(cause, out)
	}
}
