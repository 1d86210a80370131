package enrich

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// 只校验结构与类型，枚举值留给逐字段合并去兜底：bias 写错时
// 其余合法字段仍然要被采纳。
const summarySchema = `{
  "type": "object",
  "properties": {
    "bias": {"type": "string"},
    "confidence": {"type": "number"},
    "narrative": {"type": "string"},
    "newsHighlights": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "source": {"type": "string"}
        },
        "required": ["title"]
      }
    },
    "upcomingEvents": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "event": {"type": "string"},
          "impact": {"type": "string"},
          "time": {"type": "string"}
        },
        "required": ["event"]
      }
    },
    "sources": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "url": {"type": "string"}
        },
        "required": ["title", "url"]
      }
    },
    "idea": {
      "type": "object",
      "properties": {
        "type": {"type": "string"},
        "invalidatedIf": {"type": "string"},
        "note": {"type": "string"}
      }
    }
  }
}`

var compiledSchema = mustCompile(summarySchema)

func mustCompile(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("summary.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("summary.json")
}
