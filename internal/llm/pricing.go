package llm

import "strings"

// ModelCost is USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost prices a token count.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*c.InputPerMTok + float64(outputTokens)*c.OutputPerMTok) / 1e6
}

// LookupCost returns the price of modelID, or nil when it is unknown.
// OpenRouter IDs are matched on the part after the vendor prefix, and
// dated snapshots fall back to their undated family.
func LookupCost(modelID string) *ModelCost {
	id := modelID
	if i := strings.LastIndexByte(id, '/'); i >= 0 {
		id = id[i+1:]
	}
	for _, candidate := range []string{id, trimSnapshot(id)} {
		if c, ok := modelCosts[candidate]; ok {
			return &c
		}
	}
	return nil
}

// trimSnapshot drops a trailing -YYYYMMDD or -YYYY-MM-DD.
func trimSnapshot(id string) string {
	parts := strings.Split(id, "-")
	n := len(parts)
	switch {
	case n > 1 && len(parts[n-1]) == 8 && isDigits(parts[n-1]):
		return strings.Join(parts[:n-1], "-")
	case n > 3 && len(parts[n-3]) == 4 && isDigits(parts[n-3]+parts[n-2]+parts[n-1]):
		return strings.Join(parts[:n-3], "-")
	}
	return id
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Prices as published by each vendor for the models the aliases resolve
// to and their common siblings.
var modelCosts = map[string]ModelCost{
	"claude-haiku-4-5":  {1, 5},
	"claude-sonnet-4-5": {3, 15},
	"claude-sonnet-4":   {3, 15},
	"claude-opus-4-1":   {15, 75},
	"claude-3-5-haiku":  {0.8, 4},

	"gpt-4.1":      {2, 8},
	"gpt-4.1-mini": {0.4, 1.6},
	"gpt-4.1-nano": {0.1, 0.4},
	"gpt-4o":       {2.5, 10},
	"gpt-4o-mini":  {0.15, 0.6},
	"gpt-5":        {1.25, 10},
	"gpt-5-mini":   {0.25, 2},
	"gpt-5-nano":   {0.05, 0.4},

	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-flash-lite": {0.1, 0.4},
	"gemini-2.5-pro":        {1.25, 10},
}
