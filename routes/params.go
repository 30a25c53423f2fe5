package routes

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Godeaux/Godot-AI-Bridge/bridgehttp"
)

// refOrPath reads the interchangeable ref/path parameter from either the
// query string or a JSON body (spec.md §4.8's "ref and path are
// interchangeable" rule).
func refOrPath(req bridgehttp.Request) string {
	if v := req.Query["ref"]; v != "" {
		return v
	}
	if v := req.Query["path"]; v != "" {
		return v
	}
	if m, ok := req.JSON.(map[string]any); ok {
		if v, ok := m["ref"].(string); ok && v != "" {
			return v
		}
		if v, ok := m["path"].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func bodyMap(req bridgehttp.Request) map[string]any {
	if m, ok := req.JSON.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func queryString(req bridgehttp.Request, name string) (string, bool) {
	if v, ok := req.Query[name]; ok && v != "" {
		return v, true
	}
	if v, ok := bodyMap(req)[name].(string); ok {
		return v, true
	}
	return "", false
}

func queryFloat(req bridgehttp.Request, name string, fallback float64) float64 {
	if v, ok := req.Query[name]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if v, ok := bodyMap(req)[name]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return fallback
}

func queryInt(req bridgehttp.Request, name string, fallback int) int {
	return int(queryFloat(req, name, float64(fallback)))
}

func queryBool(req bridgehttp.Request, name string, fallback bool) bool {
	if v, ok := req.Query[name]; ok {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	if v, ok := bodyMap(req)[name]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// missingParam is spec.md §4.8's uniform "Must provide" body.
func missingParam(name string) map[string]any {
	return bridgehttp.NewError(bridgehttp.KindParameterInvalid, "Must provide '"+name+"'")
}

// withDescription merges a human-readable, non-load-bearing summary into a
// successful response body (spec.md §4.8).
func withDescription(body map[string]any, description string) map[string]any {
	body["_description"] = description
	return body
}

// asMap flattens a JSON-taggable struct into a plain map so handlers can
// merge in extra fields (e.g. an optional trailing screenshot) before
// returning. Struct encoding errors can't happen for the fixed value types
// this package produces, so the error is dropped.
func asMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
