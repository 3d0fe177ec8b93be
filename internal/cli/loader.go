package cli

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/arbor/internal/tree"
)

//go:embed schema.cue
var payloadSchema string

// Load error codes.
const (
	ErrCodeFileNotFound   = "FILE_NOT_FOUND"
	ErrCodeInvalidYAML    = "INVALID_YAML"
	ErrCodeSchemaRejected = "SCHEMA_REJECTED"
)

// LoadError describes a payload that could not be loaded.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadPayload reads a YAML payload file and validates it against the
// embedded schema before decoding it into entries. Schema validation
// runs on the raw document so a rejected payload names the offending
// field rather than failing on a Go type mismatch.
func LoadPayload(path string) ([]tree.Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeFileNotFound, Message: fmt.Sprintf("read payload %s", path), Err: err}
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidYAML, Message: fmt.Sprintf("parse payload %s", path), Err: err}
	}
	if doc == nil {
		return nil, nil
	}

	if err := validatePayload(doc); err != nil {
		return nil, &LoadError{Code: ErrCodeSchemaRejected, Message: fmt.Sprintf("payload %s rejected", path), Err: err}
	}

	var entries []tree.Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidYAML, Message: fmt.Sprintf("decode payload %s", path), Err: err}
	}
	return entries, nil
}

// validatePayload unifies the decoded document with the #Payload schema.
func validatePayload(doc any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(payloadSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile payload schema: %w", err)
	}

	payload := schema.LookupPath(cue.ParsePath("#Payload"))
	if err := payload.Err(); err != nil {
		return fmt.Errorf("resolve payload schema: %w", err)
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	unified := payload.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}
