package routes

import (
	"context"

	"github.com/Godeaux/Godot-AI-Bridge/bridgehttp"
	"github.com/Godeaux/Godot-AI-Bridge/condwait"
)

func registerWaitRoutes(srv *bridgehttp.Server, deps *Deps) {
	srv.Register("POST", "/wait", func(req bridgehttp.Request) any {
		seconds := queryFloat(req, "seconds", 0)
		if seconds > 0 && deps.Input != nil {
			<-deps.Input.Clock.After(context.Background(), seconds)
		}
		return withObservation(req, deps, withDescription(map[string]any{}, "waited"))
	})

	srv.Register("POST", "/wait_for", func(req bridgehttp.Request) any {
		body := bodyMap(req)
		kindStr, ok := queryString(req, "condition")
		if !ok {
			return missingParam("condition")
		}
		kind := condwait.Kind(kindStr)

		cond := condwait.Condition{
			Kind:         kind,
			Ref:          refOrPath(req),
			Timeout:      queryFloat(req, "timeout", condwait.DefaultTimeout),
			PollInterval: queryFloat(req, "poll_interval", condwait.DefaultPollInterval),
		}
		if v, ok := queryString(req, "property"); ok {
			cond.Property = v
		}
		if v, ok := queryString(req, "signal"); ok {
			cond.Signal = v
		}
		if v, hasValue := body["value"]; hasValue {
			cond.Value = v
		}

		result, err := deps.Waiter.Wait(context.Background(), cond)
		if err != nil {
			return bridgehttp.NewError(bridgehttp.KindParameterInvalid, err.Error())
		}
		return withDescription(asMap(result), "conditional wait")
	})
}
