// Package location looks up Vietnamese provinces and wards so profile
// codes can be shown as names.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/medbook/pkg/logging"
)

const DefaultBaseURL = "https://provinces.open-api.vn/api/v2"

var ErrNotFound = errors.New("location: not found")

type Province struct {
	Code         int    `json:"code"`
	Name         string `json:"name"`
	DivisionType string `json:"division_type,omitempty"`
	Codename     string `json:"codename,omitempty"`
}

type Ward struct {
	Code         int    `json:"code"`
	Name         string `json:"name"`
	DivisionType string `json:"division_type,omitempty"`
	ProvinceCode int    `json:"province_code,omitempty"`
}

// Client calls the public province API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Provinces lists every province.
func (c *Client) Provinces(ctx context.Context) ([]Province, error) {
	var provinces []Province
	if err := c.getJSON(ctx, "/p/", &provinces); err != nil {
		return nil, err
	}
	return provinces, nil
}

// Wards lists the wards of one province.
func (c *Client) Wards(ctx context.Context, provinceCode string) ([]Ward, error) {
	code := strings.TrimSpace(provinceCode)
	if _, err := strconv.Atoi(code); err != nil {
		return nil, fmt.Errorf("location: invalid province code %q", provinceCode)
	}
	var province struct {
		Wards []Ward `json:"wards"`
	}
	path := "/p/" + url.PathEscape(code) + "?depth=2"
	if err := c.getJSON(ctx, path, &province); err != nil {
		return nil, err
	}
	return province.Wards, nil
}

// ProvinceName resolves a province code, falling back to the code itself.
func ProvinceName(provinces []Province, code string) string {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return code
	}
	for _, p := range provinces {
		if p.Code == n {
			return p.Name
		}
	}
	return code
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("location: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("location: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("location: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("location API non-2xx response", "status", resp.StatusCode, "path", path)
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("location: status %d: %s", resp.StatusCode, msg)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("location: decode response: %w", err)
	}
	return nil
}
