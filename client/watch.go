package client

import (
	"bufio"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
)

// Watch subscribes to the change feed of tables, or of every table when none is given.
// It returns once the server confirmed the subscription; the channel is closed when ctx is done or the stream ends.
func (c *Client) Watch(ctx context.Context, tables ...string) (<-chan core.ChangeEvent, error) {
	path := "/changes"
	if len(tables) > 0 {
		path += "?" + url.Values{"table": {strings.Join(tables, ",")}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// a stream outlives any request timeout
	hc := *c.http
	hc.Timeout = 0
	res, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "opening change stream")
	}
	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		data, _ := ioutil.ReadAll(res.Body)
		return nil, newAPIError(res, data)
	}

	scanner := bufio.NewScanner(res.Body)
	// the first frame is the ": connected" comment
	for scanner.Scan() {
		if scanner.Text() == "" {
			break
		}
	}
	if err = scanner.Err(); err != nil {
		res.Body.Close()
		return nil, errors.Wrap(err, "reading change stream")
	}

	events := make(chan core.ChangeEvent)
	go func() {
		defer close(events)
		defer res.Body.Close()

		var event, data string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if event == "change" && data != "" {
					var ev core.ChangeEvent
					if json.Unmarshal([]byte(data), &ev) == nil {
						select {
						case events <- ev:
						case <-ctx.Done():
							return
						}
					}
				}
				event, data = "", ""
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}()
	return events, nil
}
