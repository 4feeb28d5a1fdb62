package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSEStreamOpener returns an OpenStreamFunc that subscribes to the relay
// server's push endpoint at 'url'. Events arrive as `data:` lines per the
// text/event-stream format; comment lines (server heartbeats) are skipped.
// A stream that ends for any reason other than ctx cancellation is reported
// through OnError, a clean server-side end included; the push channel is
// supposed to outlive the page, so its loss is always worth surfacing.
func SSEStreamOpener(url string, client *http.Client) OpenStreamFunc {
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context, events StreamEvents) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build stream request: %w", err)
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")

		rsp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("open stream: %w", err)
		}

		if rsp.StatusCode != http.StatusOK {
			rsp.Body.Close()
			return fmt.Errorf("open stream: unexpected status %d", rsp.StatusCode)
		}

		go func() {
			defer rsp.Body.Close()

			events.OnOpen()

			var data strings.Builder
			scanner := bufio.NewScanner(rsp.Body)

			for scanner.Scan() {
				line := scanner.Text()

				switch {
				case line == "":
					if data.Len() > 0 {
						events.OnEvent([]byte(data.String()))
						data.Reset()
					}

				case strings.HasPrefix(line, ":"):
					// heartbeat comment

				case strings.HasPrefix(line, "data:"):
					if data.Len() > 0 {
						data.WriteByte('\n')
					}
					data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))

				default:
					// field we don't consume (event:, id:, retry:)
				}
			}

			if ctx.Err() != nil {
				return
			}

			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			events.OnError(err)
		}()

		return nil
	}
}

// HTTPCodeFetcher returns a FetchCodeFunc that reads the currently active
// access code from the relay server's code endpoint.
func HTTPCodeFetcher(url string, client *http.Client) FetchCodeFunc {
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("build code request: %w", err)
		}

		rsp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("fetch code: %w", err)
		}
		defer rsp.Body.Close()

		if rsp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		if rsp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch code: unexpected status %d", rsp.StatusCode)
		}

		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(rsp.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("decode code response: %w", err)
		}

		return body.Code, nil
	}
}
