package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrSchemaInvalid is returned by Invoke when arguments fail validation
// against a tool's input_schema before any round trip to the child.
type ErrSchemaInvalid struct {
	ToolID string
	Reason string
}

func (e *ErrSchemaInvalid) Error() string {
	return fmt.Sprintf("gateway: arguments for %q fail schema validation: %s", e.ToolID, e.Reason)
}

// validateArguments compiles schema (a tool's input_schema, an opaque
// JSON Schema object) and validates arguments against it. A missing or
// empty schema always passes — not every downstream tool publishes one,
// and invoke must not penalize that. A schema that fails to parse or
// compile is treated the same way: dispatch is attempted and the child
// is left to reject malformed input itself, matching the permissive
// pattern the pack's registry validator uses (see DESIGN.md).
func validateArguments(schema json.RawMessage, arguments any) error {
	if len(schema) == 0 || string(schema) == "{}" || string(schema) == "null" {
		return nil
	}

	var schemaDoc any
	if err := json.Unmarshal(schema, &schemaDoc); err != nil {
		return nil
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("input_schema.json", schemaDoc); err != nil {
		return nil
	}
	compiled, err := c.Compile("input_schema.json")
	if err != nil {
		return nil
	}

	// arguments arrives as an `any` (typically map[string]any decoded
	// from the host request's JSON); round-trip through json so the
	// validator sees the same shape it would from raw wire bytes.
	raw, err := json.Marshal(arguments)
	if err != nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}

	if err := compiled.Validate(doc); err != nil {
		return err
	}
	return nil
}
