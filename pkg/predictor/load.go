package predictor

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

//go:embed artifact.schema.json
var artifactSchemaJSON []byte

const artifactSchemaURL = "https://o2csim.dev/schemas/artifact.schema.json"

var (
	schemaOnce     sync.Once
	artifactSchema *jsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(artifactSchemaURL, bytes.NewReader(artifactSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		artifactSchema, schemaErr = compiler.Compile(artifactSchemaURL)
	})
	return artifactSchema, schemaErr
}

// DecodeArtifact reads and schema-checks an artifact document. It does not
// check dimensions; see Artifact.Validate.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeArtifactLoad, "failed to read artifact")
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeArtifactInvalid, "artifact is not valid JSON")
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeArtifactLoad, "artifact schema unavailable")
	}
	if err := schema.Validate(doc); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeArtifactInvalid, "artifact does not match schema")
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeArtifactInvalid, "failed to decode artifact")
	}
	return &a, nil
}

// Load decodes, validates and compiles an artifact.
func Load(r io.Reader) (*Model, error) {
	a, err := DecodeArtifact(r)
	if err != nil {
		return nil, err
	}
	return NewModel(a)
}

// Encode writes a as indented JSON.
func (a *Artifact) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}
