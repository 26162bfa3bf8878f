package importer

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Section names one independently imported part of the legacy payload.
type Section string

const (
	SectionBindings   Section = "bindings"
	SectionCustomKeys Section = "customKeys"
	SectionRemappings Section = "remappings"
	SectionFingers    Section = "fingerAssignments"
	SectionDevice     Section = "deviceSettings"
)

// Sections lists the sections in processing order.
func Sections() []Section {
	return []Section{SectionBindings, SectionCustomKeys, SectionRemappings, SectionFingers, SectionDevice}
}

var sectionSchemas = map[Section]string{
	SectionBindings: `{
		"type": "object"
	}`,
	SectionCustomKeys: `{
		"type": "array",
		"items": {
			"type": "object",
			"properties": {
				"keyCode": {"type": ["string", "null"]},
				"keyName": {"type": ["string", "null"]}
			}
		}
	}`,
	SectionRemappings: `{
		"type": "object",
		"additionalProperties": {"type": ["string", "null"]}
	}`,
	SectionFingers: `{
		"type": "object",
		"additionalProperties": {
			"anyOf": [
				{"type": "string"},
				{"type": "array", "items": {"type": "string"}}
			]
		}
	}`,
	SectionDevice: `{
		"type": "object",
		"properties": {
			"dpi": {"type": ["number", "null"]},
			"sensitivity": {"type": ["number", "null"]},
			"rawInput": {"type": ["boolean", "null"]},
			"pointerSpeed": {"type": ["integer", "null"]},
			"customMultiplier": {"type": ["number", "null"]},
			"keyboardLayout": {"type": ["string", "null"]},
			"mouseModel": {"type": ["string", "null"]},
			"keyboardModel": {"type": ["string", "null"]},
			"mousepadModel": {"type": ["string", "null"]},
			"headsetModel": {"type": ["string", "null"]},
			"pollingRate": {"type": ["integer", "null"]},
			"monitorRefreshRate": {"type": ["integer", "null"]}
		}
	}`,
}

type schemaSet map[Section]*jsonschema.Schema

func compileSchemas() (schemaSet, error) {
	compiled := make(schemaSet, len(sectionSchemas))
	compiler := jsonschema.NewCompiler()
	for section, source := range sectionSchemas {
		resource := fmt.Sprintf("keyhub://import/%s.schema.json", section)
		if err := compiler.AddResource(resource, strings.NewReader(source)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", section, err)
		}
		schema, err := compiler.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", section, err)
		}
		compiled[section] = schema
	}
	return compiled, nil
}

func (s schemaSet) validate(section Section, instance any) error {
	schema, ok := s[section]
	if !ok {
		return fmt.Errorf("no schema for section %s", section)
	}
	return schema.Validate(instance)
}
