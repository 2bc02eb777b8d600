package config

import "os"

const defaultAPIURL = "http://localhost:8080"

// APIURL returns the base URL for the scheduler API.
// It can be overridden with HCI_SCHEDULER_API_URL (or the older HCI_ASSET_API_URL).
func APIURL() string {
	if v := os.Getenv("HCI_SCHEDULER_API_URL"); v != "" {
		return v
	}
	if v := os.Getenv("HCI_ASSET_API_URL"); v != "" {
		return v
	}
	return defaultAPIURL
}

// Token returns the bearer token sent with every request, from HCI_SCHEDULER_TOKEN.
// Empty when the API runs without JWT_SECRET.
func Token() string {
	return os.Getenv("HCI_SCHEDULER_TOKEN")
}
