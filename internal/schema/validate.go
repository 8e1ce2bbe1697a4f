// Package schema validates workflow configuration documents against the
// embedded JSON schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	schemafs "github.com/jj-shen99/testbench/schema"
)

const workflowSchemaName = "workflow.schema.json"

var (
	workflowSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

// compileSchema compiles the embedded schema once.
func compileSchema() error {
	compileOnce.Do(func() {
		data, err := schemafs.FS.ReadFile(workflowSchemaName)
		if err != nil {
			compileErr = fmt.Errorf("read workflow schema: %w", err)
			return
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal workflow schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(workflowSchemaName, doc); err != nil {
			compileErr = fmt.Errorf("add workflow schema resource: %w", err)
			return
		}

		workflowSchema, err = compiler.Compile(workflowSchemaName)
		if err != nil {
			compileErr = fmt.Errorf("compile workflow schema: %w", err)
		}
	})

	return compileErr
}

// ValidateWorkflow validates JSON data against the workflow schema.
func ValidateWorkflow(data []byte) error {
	if err := compileSchema(); err != nil {
		return err
	}

	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := workflowSchema.Validate(v); err != nil {
		return fmt.Errorf("workflow validation failed: %w", err)
	}

	return nil
}

// ValidateDocument validates an already decoded document, such as the
// generic value produced by a YAML decoder.
func ValidateDocument(doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return ValidateWorkflow(data)
}
