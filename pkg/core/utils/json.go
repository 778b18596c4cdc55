package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrNoJSON is returned when no parsing strategy yields a value.
var ErrNoJSON = errors.New("no parsable json")

// RepairJSON fixes the usual defects of model output: code fences, unquoted keys,
// single quotes, trailing commas, comments and unclosed brackets.
func RepairJSON(raw string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(StripCodeFence(raw))
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %w", err)
	}
	return repaired, nil
}

// ParseHJSON decodes human-edited JSON (comments, unquoted keys and strings,
// optional commas) into v. Values are normalized through encoding/json so the
// usual struct tags apply.
func ParseHJSON(data []byte, v any) error {
	var generic any
	if err := hjson.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("HJSON_PARSE_ERROR: %w", err)
	}
	b, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("JSON_MARSHAL_ERROR: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("HJSON_UNMARSHAL_ERROR: %w", err)
	}
	return nil
}

// SmartParse tries strict JSON, then repaired JSON, then Hjson, decoding into v
// with the first strategy that succeeds. It returns the name of that strategy.
func SmartParse(input string, v any) (string, error) {
	if err := json.Unmarshal([]byte(input), v); err == nil {
		return "json", nil
	}
	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return "repair", nil
		}
	}
	if err := ParseHJSON([]byte(input), v); err == nil {
		return "hjson", nil
	}
	return "", ErrNoJSON
}

// StripCodeFence removes one outer ``` block, with or without a language tag.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return t
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], "{[") {
		t = t[nl+1:]
	}
	return strings.TrimSpace(t)
}
