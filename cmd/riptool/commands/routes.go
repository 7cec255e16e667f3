package commands

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// routeView mirrors debugserver's routeJSON wire shape.
type routeView struct {
	Addr    string `json:"addr"`
	Len     uint8  `json:"len"`
	IfIndex int    `json:"if_index"`
	NextHop string `json:"next_hop"`
	Metric  uint8  `json:"metric"`
}

type routesResponse struct {
	Routes []routeView `json:"routes"`
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the current routing table",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp routesResponse
			if err := getJSON("/routes", &resp); err != nil {
				return fmt.Errorf("list routes: %w", err)
			}

			out, err := formatRoutes(resp.Routes, outputFormat)
			if err != nil {
				return fmt.Errorf("format routes: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

// getJSON fetches path from the ripd debug server and decodes the JSON
// response body into v.
func getJSON(path string, v any) error {
	resp, err := httpClient.Get("http://" + serverAddr + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}
