package build

// Schema returns the JSON Schema the recommendation service must fill in for
// a build. It is a fresh map on every call so callers may annotate it.
func Schema() map[string]any {
	component := func(desc string) map[string]any {
		return map[string]any{
			"type":        "object",
			"description": desc,
			"properties": map[string]any{
				"name":   map[string]any{"type": "string", "description": "Exact product name"},
				"price":  map[string]any{"type": "number", "description": "Price in USD"},
				"reason": map[string]any{"type": "string", "description": "Why this product fits"},
			},
			"required":             []string{"name", "price", "reason"},
			"additionalProperties": false,
		}
	}

	switches := component("Switches for the build")
	props := switches["properties"].(map[string]any)
	props["quantity"] = map[string]any{"type": "integer", "minimum": 1, "description": "Number of switches needed"}
	props["price_per_switch"] = map[string]any{"type": "number", "description": "Unit price in USD"}
	switches["required"] = []string{"name", "price", "reason", "quantity", "price_per_switch"}

	difficulty := map[string]any{
		"type": "string",
		"enum": []string{string(DifficultyBeginner), string(DifficultyIntermediate), string(DifficultyAdvanced)},
	}

	return map[string]any{
		"type":        "object",
		"description": "Build schema " + SchemaVersion,
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "description": "Short, catchy build name"},
			"summary":     map[string]any{"type": "string", "description": "One-sentence summary"},
			"keyboard":    component("Keyboard kit or case"),
			"switches":    switches,
			"keycaps":     component("Keycap set"),
			"stabilizers": component("Stabilizers"),
			"mods": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":       map[string]any{"type": "string"},
						"cost":       map[string]any{"type": "number"},
						"effect":     map[string]any{"type": "string"},
						"difficulty": difficulty,
					},
					"required":             []string{"name", "cost", "effect", "difficulty"},
					"additionalProperties": false,
				},
			},
			"estimated_total": map[string]any{"type": "number"},
			"sound_profile":   map[string]any{"type": "string", "description": "Expected sound"},
			"difficulty":      difficulty,
			"notes":           map[string]any{"type": "string"},
		},
		"required": []string{
			"name", "summary", "keyboard", "switches", "keycaps", "stabilizers",
			"mods", "estimated_total", "sound_profile", "difficulty", "notes",
		},
		"additionalProperties": false,
	}
}
