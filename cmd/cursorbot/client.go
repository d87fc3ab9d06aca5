package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/HouseParty/internal/app/orch"
	"github.com/dkeye/HouseParty/internal/domain"
)

type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("POST %s: %s: %s", path, resp.Status, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) createRoom(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/rooms", nil, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *client) negotiate(ctx context.Context) (domain.Negotiation, error) {
	var n domain.Negotiation
	err := c.post(ctx, "/api/realtime/negotiate", nil, &n)
	return n, err
}

func (c *client) join(ctx context.Context, room string, conn domain.ConnectionID, name string, seat *int) (orch.JoinResult, error) {
	var res orch.JoinResult
	err := c.post(ctx, "/api/rooms/"+room+"/join", map[string]any{
		"connectionId": conn,
		"name":         name,
		"playerNumber": seat,
	}, &res)
	return res, err
}

func (c *client) mouse(ctx context.Context, room string, p domain.Presence) error {
	return c.post(ctx, "/api/rooms/"+room+"/mouse", p, nil)
}
