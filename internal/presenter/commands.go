package presenter

import (
	"context"
	"encoding/json"

	"github.com/evtrack/fleetlogger/internal/models"
)

// command is one observer request, correlated by ID so the response can be matched
// to the request that produced it. Name is one of the five verbs named in §4.6.
type command struct {
	ID   string          `json:"id"`
	Name string          `json:"command"`
	Args json.RawMessage `json:"args,omitempty"`
}

// response is the correlated reply to a command, per §4.6: "{status: bool,
// reason?: string}".
type response struct {
	ID     string      `json:"id"`
	Status bool        `json:"status"`
	Reason string      `json:"reason,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

func ok(id string, data interface{}) response { return response{ID: id, Status: true, Data: data} }
func fail(id, reason string) response         { return response{ID: id, Status: false, Reason: reason} }

// dispatch implements the five observer commands of §4.6.
func (s *Server) dispatch(ctx context.Context, cmd command) response {
	switch cmd.Name {
	case "StartLogging":
		s.reg.LoggingEnabled.Set(true)
		return ok(cmd.ID, nil)

	case "StopLogging":
		s.reg.LoggingEnabled.Set(false)
		return ok(cmd.ID, nil)

	case "RefreshToken":
		if s.tokens == nil {
			return fail(cmd.ID, "token manager unavailable")
		}
		if err := s.tokens.RequestRefresh(ctx); err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, nil)

	case "GetSettings":
		settings, err := s.settings.LoadSettings()
		if err != nil {
			return fail(cmd.ID, err.Error())
		}
		return ok(cmd.ID, settings)

	case "SetSettings":
		var settings models.Settings
		if err := json.Unmarshal(cmd.Args, &settings); err != nil {
			return fail(cmd.ID, "invalid settings payload: "+err.Error())
		}
		if err := s.settings.SaveSettings(settings); err != nil {
			return fail(cmd.ID, err.Error())
		}
		s.reg.LoggingPeriodMs.Set(settings.LoggingPeriodMs)
		s.reg.PreferredRange.Set(settings.PreferredRange)
		return ok(cmd.ID, nil)

	default:
		return fail(cmd.ID, "unknown command: "+cmd.Name)
	}
}
