package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// JobFile is the declarative form of a render job, shared by CLI job files
// (YAML or JSON) and the HTTP API request body.
type JobFile struct {
	BaseURL          string            `yaml:"base_url" json:"base_url"`
	Destination      string            `yaml:"destination" json:"destination"`
	TimeoutMs        *int64            `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
	Debug            bool              `yaml:"debug" json:"debug"`
	Viewport         *ViewportFile     `yaml:"viewport,omitempty" json:"viewport,omitempty"`
	Headers          map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Stealth          bool              `yaml:"stealth" json:"stealth"`
	BlockedResources []string          `yaml:"blocked_resources,omitempty" json:"blocked_resources,omitempty"`
	StripSelectors   []string          `yaml:"strip_selectors,omitempty" json:"strip_selectors,omitempty"`
	Markdown         bool              `yaml:"markdown" json:"markdown"`
	Routes           []RouteFile       `yaml:"routes" json:"routes"`
}

// ViewportFile is the browser window size.
type ViewportFile struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// RouteFile is one route entry. Active defaults to true when omitted.
type RouteFile struct {
	Path    string   `yaml:"path" json:"path"`
	WaitFor []string `yaml:"wait_for,omitempty" json:"wait_for,omitempty"`
	Active  *bool    `yaml:"active,omitempty" json:"active,omitempty"`
}

// IsActive resolves the optional Active flag.
func (r RouteFile) IsActive() bool {
	return r.Active == nil || *r.Active
}

// ParseRoute reads the compact "path|sel,sel" form used on the command line
// and by the MCP tools. Blank selectors are dropped.
func ParseRoute(s string) RouteFile {
	path, sels, _ := strings.Cut(s, "|")
	rf := RouteFile{Path: strings.TrimSpace(path)}
	for _, sel := range strings.Split(sels, ",") {
		if sel = strings.TrimSpace(sel); sel != "" {
			rf.WaitFor = append(rf.WaitFor, sel)
		}
	}
	return rf
}

// LoadJobFile reads a job file. Files ending in .json are decoded as JSON,
// everything else as YAML.
func LoadJobFile(path string) (*JobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read job file: %w", err)
	}

	var jf JobFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &jf)
	} else {
		err = yaml.Unmarshal(data, &jf)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse job file %s: %w", path, err)
	}
	return &jf, nil
}
