package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
)

type changesApi struct {
	broker core.ChangeBroker
}

func registerChangesAPI(authed *echo.Group, deps ServerDeps) {
	api := changesApi{broker: deps.Broker}

	authed.GET("/changes", api.stream)
}

// tablesParam reads `table` query params; each may also be a comma separated list.
// No param means every public table; a table clients may not watch is an error.
func tablesParam(ctx echo.Context) ([]string, error) {
	var tables []string
	for _, param := range ctx.QueryParams()["table"] {
		for _, t := range strings.Split(param, ",") {
			t = core.CleanString(t, true /* lower */)
			if t == "" {
				continue
			}
			if !core.IsPublicTable(t) {
				return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown table %q", t))
			}
			tables = append(tables, t)
		}
	}
	if len(tables) == 0 {
		return core.PublicTables, nil
	}
	return tables, nil
}

// stream sends change events as Server-Sent Events until the client goes away.
func (api *changesApi) stream(ctx echo.Context) error {
	if api.broker == nil {
		return errHttpNotFound
	}
	res := ctx.Response()
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return errStreamNotAvail
	}

	tables, err := tablesParam(ctx)
	if err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	events, unsubscribe := api.broker.Subscribe(rctx, tables...)
	defer unsubscribe()

	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(res, ": connected\n\n"); err != nil {
		return nil
	}
	flusher.Flush()

	for {
		select {
		case <-rctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				return errors.Wrap(err, "marshalling change event")
			}
			if _, err = fmt.Fprintf(res, "event: change\ndata: %s\n\n", data); err != nil {
				return nil // client is gone
			}
			flusher.Flush()
		}
	}
}
