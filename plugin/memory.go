package plugin

import (
	"errors"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/tool"
)

// Memory tool names.
const (
	ToolRecall = "recall"
	ToolSave   = "save"
)

// DefaultCollection is used when a memory tool call names no collection.
const DefaultCollection = "generic"

var errNoMemory = errors.New("memory is not configured")

// MemoryTools exposes the session's memory capability to the model.
func MemoryTools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(ToolRecall, "Recalls information from long-term memory that is relevant to a question.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ask":        map[string]any{"type": "string", "description": "The question to answer from memory"},
					"collection": map[string]any{"type": "string", "description": "Memory collection to search"},
					"limit":      map[string]any{"type": "integer", "description": "Maximum number of memories"},
					"relevance":  map[string]any{"type": "number", "description": "Minimum relevance between 0 and 1"},
				},
				"required": []string{"ask"},
			},
			recall),
		tool.NewFunctionTool(ToolSave, "Saves information to long-term memory.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":       map[string]any{"type": "string", "description": "The information to save"},
					"key":        map[string]any{"type": "string", "description": "Unique key of the memory"},
					"collection": map[string]any{"type": "string", "description": "Memory collection to save into"},
				},
				"required": []string{"text"},
			},
			save),
	}
}

func recall(tc *core.ToolContext, args map[string]any) (any, error) {
	store := tc.Memory()
	if store == nil {
		return nil, errNoMemory
	}

	limit, ok := intArg(args, "limit", 1)
	if !ok || limit < 1 {
		return nil, tool.NewToolError(ToolRecall, "limit must be a positive integer", tool.CodeValidation)
	}

	minRelevance := floatArg(args, "relevance", 0)
	coll := stringArg(args, "collection", DefaultCollection)

	results, err := store.Search(tc.Context(), coll, stringArg(args, "ask", ""), limit)
	if err != nil {
		return nil, err
	}

	out := make([]core.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Relevance >= minRelevance {
			out = append(out, r)
		}
	}

	tc.LogDebug("plugin.memory.recalled", "collection", coll, "hits", len(out))

	return out, nil
}

func save(tc *core.ToolContext, args map[string]any) (any, error) {
	store := tc.Memory()
	if store == nil {
		return nil, errNoMemory
	}

	coll := stringArg(args, "collection", DefaultCollection)
	key := stringArg(args, "key", core.NewID())

	if err := store.Add(tc.Context(), coll, key, stringArg(args, "text", "")); err != nil {
		return nil, err
	}

	return map[string]any{"collection": coll, "key": key, "saved": true}, nil
}
