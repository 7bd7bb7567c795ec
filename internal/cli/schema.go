package cli

import (
	"encoding/json"
	"sort"
	"strings"
)

// SchemaCmd outputs JSON Schema for presence output types
type SchemaCmd struct {
	Type []string `short:"t" help:"Output types to include (session,detection,active,summary,error,notice). Default: all"`
}

var schemaTypes = map[string]func() map[string]interface{}{
	"session":   sessionSchema,
	"detection": detectionSchema,
	"active":    activeSchema,
	"summary":   summarySchema,
	"error":     errorSchema,
	"notice":    noticeSchema,
}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		for name := range schemaTypes {
			typesToOutput = append(typesToOutput, name)
		}
		sort.Strings(typesToOutput)
	}

	defs := map[string]interface{}{}
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		schema, ok := schemaTypes[t]
		if !ok {
			return outputErrorCommon(globals, "UNKNOWN_SCHEMA", "unknown output type: "+t,
				"choose from session, detection, active, summary, error, notice")
		}
		defs[t] = schema()
	}

	out := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "Presence Output Schemas",
		"description": "JSON Schema definitions for all presence NDJSON output types",
		"definitions": defs,
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func constType(name string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "const": name}
}

func sessionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Session",
		"description": "A completed presence session, as stored in history",
		"properties": map[string]interface{}{
			"type":          constType("session"),
			"schemaVersion": prop("integer", "Output schema version"),
			"id":            prop("integer", "Completion instant in epoch milliseconds"),
			"startTime":     prop("integer", "Start of the session in epoch milliseconds"),
			"endTime": map[string]interface{}{
				"type":        []string{"integer", "null"},
				"description": "End of the session in epoch milliseconds; null only in legacy data",
			},
			"duration": prop("number", "Accumulated present time in seconds"),
			"stored":   prop("boolean", "Live completions only: false when history already held an equivalent session"),
		},
		"required": []string{"type", "id", "startTime", "endTime", "duration"},
	}
}

func detectionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Detection",
		"description": "A moment presence was first detected after absence",
		"properties": map[string]interface{}{
			"type":          constType("detection"),
			"schemaVersion": prop("integer", "Output schema version"),
			"id":            prop("integer", "Detection instant in epoch milliseconds"),
			"timestamp":     prop("integer", "Detection instant in epoch milliseconds"),
			"timeString":    prop("string", "Local wall-clock rendering, HH:MM:SS.cc AM/PM"),
		},
		"required": []string{"type", "id", "timestamp", "timeString"},
	}
}

func activeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Active Session",
		"description": "The in-flight session, if any",
		"properties": map[string]interface{}{
			"type":           constType("active"),
			"schemaVersion":  prop("integer", "Output schema version"),
			"active":         prop("boolean", "Whether a session is in progress"),
			"startTime":      prop("integer", "Start of the in-flight session in epoch milliseconds"),
			"elapsedSeconds": prop("number", "Present time accumulated so far"),
		},
		"required": []string{"type", "active", "elapsedSeconds"},
	}
}

func summarySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Summary",
		"description": "Closes a listing or a watch run",
		"properties": map[string]interface{}{
			"type":          constType("summary"),
			"schemaVersion": prop("integer", "Output schema version"),
			"count":         prop("integer", "Number of records listed"),
			"total_seconds": prop("number", "Summed session duration in seconds"),
		},
		"required": []string{"type", "count"},
	}
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Error",
		"description": "A command failure",
		"properties": map[string]interface{}{
			"type":          constType("error"),
			"schemaVersion": prop("integer", "Output schema version"),
			"code":          prop("string", "Stable error code, e.g. CONFIRMATION_REQUIRED"),
			"message":       prop("string", "Human-readable description"),
			"hint":          prop("string", "Suggested fix"),
		},
		"required": []string{"type", "code", "message"},
	}
}

func noticeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Notice",
		"description": "Informational, warning, or cleared line",
		"properties": map[string]interface{}{
			"type": map[string]interface{}{
				"type": "string",
				"enum": []string{"info", "warning", "cleared"},
			},
			"schemaVersion": prop("integer", "Output schema version"),
			"message":       prop("string", "Text of the notice"),
			"target":        prop("string", "For cleared: sessions or detections"),
			"timestamp":     prop("string", "RFC3339 time the notice was written"),
		},
		"required": []string{"type", "timestamp"},
	}
}
