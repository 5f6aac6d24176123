// Package providers implements the gemini, openai, and anthropic backends of
// the model runner's Provider interface, including the mapping between the
// universal tool shape and each SDK's native tool declarations.
package providers

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/builder6/builder6/internal/tools"
)

// toAnthropicTools converts universal tool declarations to the Anthropic
// tool-union format.
func toAnthropicTools(list []tools.Tool) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, 0, len(list))
	for _, tool := range list {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			continue
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Name())
		if param.OfTool != nil {
			param.OfTool.Description = anthropic.String(tool.Description())
		}
		result = append(result, param)
	}
	return result
}

// toOpenAITools converts universal tool declarations to OpenAI function
// definitions.
func toOpenAITools(list []tools.Tool) []openai.Tool {
	result := make([]openai.Tool, 0, len(list))
	for _, tool := range list {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema(), &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  schemaMap,
			},
		})
	}
	return result
}

// toGeminiTools converts universal tool declarations to Gemini function
// declarations grouped under a single Tool.
func toGeminiTools(list []tools.Tool) []*genai.Tool {
	if len(list) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(list))
	for _, tool := range list {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema(), &schemaMap); err != nil {
			continue
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  toGeminiSchema(schemaMap),
		})
	}
	if len(declarations) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// toGeminiSchema recursively converts a JSON-schema map into Gemini's typed
// Schema. Gemini has no raw-schema input, so properties, enums, required
// lists, and array item schemas are mapped field by field.
func toGeminiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = toGeminiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = toGeminiSchema(items)
	}

	return schema
}
