package outline

import "encoding/json"

// Schema is the JSON schema an outline response must satisfy.
var Schema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "article_type": {"type": "string"},
    "core_innovation": {"type": "string", "minLength": 1},
    "analogy_theme": {"type": "string"},
    "sections": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "properties": {
          "type": {"enum": ["hero", "intro", "problem", "method", "results", "impact", "conclusion"]},
          "title": {"type": "string", "minLength": 1},
          "key_points": {"type": "array", "items": {"type": "string"}},
          "analogy": {"type": "string"}
        },
        "required": ["type", "title"]
      }
    }
  },
  "required": ["core_innovation", "sections"]
}`)
