package routes

import (
	"fmt"

	"github.com/Godeaux/Godot-AI-Bridge/bridgehttp"
	"github.com/Godeaux/Godot-AI-Bridge/valuewire"
)

func registerStateRoutes(srv *bridgehttp.Server, deps *Deps) {
	srv.Register("GET", "/state", func(req bridgehttp.Request) any {
		ref := refOrPath(req)
		node, ok := deps.Engine.Resolve(ref)
		if !ok {
			return bridgehttp.NewError(bridgehttp.KindTargetMissing, fmt.Sprintf("no node for ref/path %q", ref))
		}
		state := deps.States.Read(node)
		return withDescription(state, fmt.Sprintf("state of %s", node.Path()))
	})

	srv.Register("POST", "/set_property", func(req bridgehttp.Request) any {
		ref := refOrPath(req)
		if ref == "" {
			return missingParam("ref")
		}
		property, ok := queryString(req, "property")
		if !ok {
			return missingParam("property")
		}
		body := bodyMap(req)
		wireValue, hasValue := body["value"]
		if !hasValue {
			return missingParam("value")
		}

		node, ok := deps.Engine.Resolve(ref)
		if !ok {
			return bridgehttp.NewError(bridgehttp.KindTargetMissing, fmt.Sprintf("no node for ref/path %q", ref))
		}

		value := wireValue
		if sample, ok := node.Property(property); ok {
			if converted, err := valuewire.Deserialize(sample, wireValue); err == nil {
				value = converted
			}
		}

		if err := node.SetProperty(property, value); err != nil {
			return bridgehttp.NewError(bridgehttp.KindParameterInvalid, err.Error())
		}
		return withObservation(req, deps, withDescription(map[string]any{
			"ref":      ref,
			"property": property,
		}, fmt.Sprintf("set %s.%s", ref, property)))
	})

	srv.Register("POST", "/call_method", func(req bridgehttp.Request) any {
		ref := refOrPath(req)
		if ref == "" {
			return missingParam("ref")
		}
		method, ok := queryString(req, "method")
		if !ok {
			return missingParam("method")
		}

		var args []any
		if raw, ok := bodyMap(req)["args"].([]any); ok {
			args = raw
		}

		node, ok := deps.Engine.Resolve(ref)
		if !ok {
			return bridgehttp.NewError(bridgehttp.KindTargetMissing, fmt.Sprintf("no node for ref/path %q", ref))
		}

		result, err := node.CallMethod(method, args)
		if err != nil {
			return bridgehttp.NewError(bridgehttp.KindCapabilityMissing, err.Error())
		}
		return withDescription(map[string]any{
			"result": valuewire.Serialize(result),
		}, fmt.Sprintf("called %s.%s", ref, method))
	})
}
