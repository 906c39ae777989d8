package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/model"
	"github.com/autopeer-io/fleetpeer/internal/missionhub/core/service"
	serverhttp "github.com/autopeer-io/fleetpeer/internal/missionhub/server/http"
)

// APIError is a non-2xx answer of the mission hub.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Client talks to the mission hub operator API.
type Client struct {
	base string
	hc   *http.Client
}

func NewClient(server string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimSuffix(server, "/") + "/api/v1",
		hc:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateMission(ctx context.Context, req service.CreateMissionRequest) (*model.MissionDuty, error) {
	var duty model.MissionDuty
	return &duty, c.do(ctx, http.MethodPost, "/missions", req, &duty)
}

func (c *Client) SendMission(ctx context.Context, vin, code string) (*model.MissionDuty, error) {
	var duty model.MissionDuty
	path := fmt.Sprintf("/vehicles/%s/missions/%s/send", url.PathEscape(vin), url.PathEscape(code))
	return &duty, c.do(ctx, http.MethodPost, path, nil, &duty)
}

func (c *Client) CancelMission(ctx context.Context, code, reason string) (*model.MissionDuty, error) {
	var duty model.MissionDuty
	path := fmt.Sprintf("/missions/%s/cancel", url.PathEscape(code))
	return &duty, c.do(ctx, http.MethodPost, path, serverhttp.CancelRequest{Reason: reason}, &duty)
}

func (c *Client) GetMission(ctx context.Context, code string) (*model.MissionDuty, error) {
	var duty model.MissionDuty
	return &duty, c.do(ctx, http.MethodGet, "/missions/"+url.PathEscape(code), nil, &duty)
}

func (c *Client) ListMissions(ctx context.Context, filter model.MissionFilter) ([]*model.MissionDuty, error) {
	q := url.Values{}
	if filter.VIN != "" {
		q.Set("vin", filter.VIN)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	path := "/missions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var duties []*model.MissionDuty
	if err := c.do(ctx, http.MethodGet, path, nil, &duties); err != nil {
		return nil, err
	}
	return duties, nil
}

func (c *Client) ListEvents(ctx context.Context, code string) ([]*model.MissionEvent, error) {
	var events []*model.MissionEvent
	path := fmt.Sprintf("/missions/%s/events", url.PathEscape(code))
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) Stats(ctx context.Context) (*model.MissionStats, error) {
	var stats model.MissionStats
	return &stats, c.do(ctx, http.MethodGet, "/missions/stats", nil, &stats)
}

func (c *Client) SendCommand(ctx context.Context, vin string, req serverhttp.CommandRequest) error {
	path := fmt.Sprintf("/vehicles/%s/commands", url.PathEscape(vin))
	return c.do(ctx, http.MethodPost, path, req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
