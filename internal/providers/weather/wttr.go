// Package weather reads current conditions from wttr.in.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Config struct {
	BaseURL  string // default https://wttr.in
	Location string // empty lets wttr.in geolocate by IP
	Imperial bool
}

type Client struct {
	http *http.Client
	cfg  Config
}

func New(httpClient *http.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://wttr.in"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{http: httpClient, cfg: cfg}
}

type report struct {
	Current []struct {
		TempC       string `json:"temp_C"`
		TempF       string `json:"temp_F"`
		FeelsLikeC  string `json:"FeelsLikeC"`
		FeelsLikeF  string `json:"FeelsLikeF"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
	NearestArea []struct {
		AreaName []struct {
			Value string `json:"value"`
		} `json:"areaName"`
	} `json:"nearest_area"`
}

// Current implements ports.Weather.
func (c *Client) Current(ctx context.Context) (string, error) {
	u := c.cfg.BaseURL + "/" + url.PathEscape(c.cfg.Location) + "?format=j1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "curl/8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch weather: status %d", resp.StatusCode)
	}

	var r report
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("decode weather: %w", err)
	}
	if len(r.Current) == 0 {
		return "", errors.New("weather report has no current conditions")
	}
	return c.describe(r), nil
}

func (c *Client) describe(r report) string {
	cur := r.Current[0]
	temp, feels := cur.TempC, cur.FeelsLikeC
	if c.cfg.Imperial {
		temp, feels = cur.TempF, cur.FeelsLikeF
	}

	desc := "clear"
	if len(cur.WeatherDesc) > 0 && strings.TrimSpace(cur.WeatherDesc[0].Value) != "" {
		desc = strings.ToLower(strings.TrimSpace(cur.WeatherDesc[0].Value))
	}

	where := ""
	if len(r.NearestArea) > 0 && len(r.NearestArea[0].AreaName) > 0 {
		where = " in " + r.NearestArea[0].AreaName[0].Value
	}

	out := fmt.Sprintf("It's currently %s degrees and %s%s.", temp, desc, where)
	if feels != "" && feels != temp {
		out += fmt.Sprintf(" It feels like %s.", feels)
	}
	return out
}
