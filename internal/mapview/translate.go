package mapview

import (
	"fmt"

	"github.com/urbanroute/routeview/internal/controller"
	"github.com/urbanroute/routeview/internal/dispatcher"
	"github.com/urbanroute/routeview/internal/route"
	"github.com/urbanroute/routeview/pkg/streaming"
)

// Translate maps an inbound page message to a controller event.
func Translate(env streaming.Envelope) (dispatcher.Event, error) {
	switch env.Type {
	case streaming.TypeOrigin, streaming.TypeDestination:
		var p streaming.SelectPayload
		if err := env.Decode(&p); err != nil {
			return dispatcher.Event{}, err
		}
		lng, lat, err := p.LngLat()
		if err != nil {
			return dispatcher.Event{}, fmt.Errorf("%s: %w", env.Type, err)
		}
		cmd := controller.CmdOriginSelected
		if env.Type == streaming.TypeDestination {
			cmd = controller.CmdDestinationSelected
		}
		return dispatcher.Event{Command: cmd, Payload: route.Endpoint{Longitude: lng, Latitude: lat}}, nil

	case streaming.TypeClear:
		var p streaming.ClearPayload
		if err := env.Decode(&p); err != nil {
			return dispatcher.Event{}, err
		}
		role := controller.Role(p.Endpoint)
		if role != controller.RoleOrigin && role != controller.RoleDestination {
			return dispatcher.Event{}, fmt.Errorf("clear: unknown endpoint %q", p.Endpoint)
		}
		return dispatcher.Event{Command: controller.CmdEndpointCleared, Payload: role}, nil

	case streaming.TypeAlgorithm:
		var p streaming.ValuePayload
		if err := env.Decode(&p); err != nil {
			return dispatcher.Event{}, err
		}
		a, err := route.ParseAlgorithm(p.Value)
		if err != nil {
			return dispatcher.Event{}, err
		}
		return dispatcher.Event{Command: controller.CmdAlgorithmChanged, Payload: a}, nil

	case streaming.TypeVariable:
		var p streaming.ValuePayload
		if err := env.Decode(&p); err != nil {
			return dispatcher.Event{}, err
		}
		v, err := route.ParseVariable(p.Value)
		if err != nil {
			return dispatcher.Event{}, err
		}
		return dispatcher.Event{Command: controller.CmdVariableChanged, Payload: v}, nil

	case streaming.TypeWeight:
		var p streaming.WeightPayload
		if err := env.Decode(&p); err != nil {
			return dispatcher.Event{}, err
		}
		return dispatcher.Event{Command: controller.CmdWeightChanged, Payload: route.WeightFromPercent(p.Percent)}, nil

	case streaming.TypeOverlay:
		return dispatcher.Event{Command: controller.CmdOverlayToggled}, nil
	}
	return dispatcher.Event{}, fmt.Errorf("unknown message type %q", env.Type)
}
