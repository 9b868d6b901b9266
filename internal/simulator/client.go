package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const CLIENT_TIMEOUT = 5 * time.Second

// Client reads a remote simulator through its inspection API.
type Client struct {
	base string
	http *http.Client
}

var _ Inspector = (*Client)(nil)

// NewClient takes the inspection address, either "host:port" or a full
// http:// URL.
func NewClient(addr string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: CLIENT_TIMEOUT},
	}
}

func (c *Client) do(method, path string, body any, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, c.base+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("simulator %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		json.NewDecoder(resp.Body).Decode(&e)
		if resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("simulator %s %s: %w", method, path, ErrDrivenInput)
		}
		if strings.Contains(e.Error, ErrOutOfRange.Error()) {
			return fmt.Errorf("simulator %s %s: %w", method, path, ErrOutOfRange)
		}
		return fmt.Errorf("simulator %s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) DigitalOutput(bit int) (bool, error) {
	var v DigitalValue
	if err := c.do(http.MethodGet, fmt.Sprintf("/outputs/digital/%d", bit), nil, &v); err != nil {
		return false, err
	}
	return v.Value, nil
}

func (c *Client) AnalogOutput(channel int) (float64, error) {
	var v AnalogValue
	if err := c.do(http.MethodGet, fmt.Sprintf("/outputs/analog/%d", channel), nil, &v); err != nil {
		return 0, err
	}
	return v.Value, nil
}

func (c *Client) SetDigitalInput(bit int, value bool) error {
	var v DigitalValue
	return c.do(http.MethodPut, fmt.Sprintf("/inputs/digital/%d", bit), DigitalValue{Bit: bit, Value: value}, &v)
}

func (c *Client) SetAnalogInput(channel int, volts float64) error {
	var v AnalogValue
	return c.do(http.MethodPut, fmt.Sprintf("/inputs/analog/%d", channel), AnalogValue{Channel: channel, Value: volts}, &v)
}

func (c *Client) State() (State, error) {
	var s State
	err := c.do(http.MethodGet, "/state", nil, &s)
	return s, err
}

// Watch calls fn with every snapshot the simulator streams until ctx is done
// or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(State)) error {
	u, err := url.Parse(c.base + "/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("simulator watch: %w", err)
	}
	defer ws.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-done:
		}
	}()

	for {
		var s State
		if err := ws.ReadJSON(&s); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(s)
	}
}
