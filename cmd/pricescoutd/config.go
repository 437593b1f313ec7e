package main

import (
	"pricescout-backend/services/amazon"
)

type ServerConfig struct {
	Port int `json:"port"`
}

type CostcoConfig struct {
	// Source selects the scraping strategy: "browser" drives a
	// headless chromium, "searchapi" hits the json search endpoint.
	Source    string `json:"source"`
	SearchUrl string `json:"search_url"`
	Bin       string `json:"bin"`
	MaxPages  int    `json:"max_pages"`
}

type MatcherConfig struct {
	Threshold float64 `json:"threshold"`
}

type CompareConfig struct {
	TimeoutSeconds int     `json:"timeout_seconds"`
	MaxInFlight    int     `json:"max_in_flight"`
	MinPercentage  float64 `json:"min_percentage"`
}

type Config struct {
	Server   ServerConfig       `json:"server"`
	Costco   CostcoConfig       `json:"costco"`
	Amazon   amazon.Credentials `json:"amazon"`
	Matcher  MatcherConfig      `json:"matcher"`
	Compare  CompareConfig      `json:"compare"`
	Database string             `json:"database"`
}
