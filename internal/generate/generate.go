package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// Generator produces and publishes one status for an account. The scheduler
// treats any failure mode of the call (transport error, non-2xx, an error
// field in the body) uniformly as a plain error.
type Generator interface {
	GenerateStatus(ctx context.Context, account, username string) error
}

// Client calls the platform's generation service over HTTP. The call is
// expensive (it drives a paid completion API downstream), so no timeout is
// imposed here; the service owns its own deadlines.
type Client struct {
	URL   string
	Token string
	HTTP  *http.Client
	Log   zerolog.Logger
}

type generateRequest struct {
	Account  string `json:"account"`
	Username string `json:"username"`
}

type generateResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (c *Client) GenerateStatus(ctx context.Context, account, username string) error {
	payload, err := json.Marshal(generateRequest{Account: account, Username: username})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return fmt.Errorf("generate %s/%s: %w", username, account, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("generate %s/%s: read response: %w", username, account, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("generate %s/%s: status %d", username, account, resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("generate %s/%s: decode response: %w", username, account, err)
	}
	if out.Error != "" {
		return fmt.Errorf("generate %s/%s: %s", username, account, out.Error)
	}
	if !out.Success {
		return errors.New("generate " + username + "/" + account + ": service reported failure")
	}

	c.Log.Debug().Str("username", username).Str("account", account).Msg("status generated")
	return nil
}
