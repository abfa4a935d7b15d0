// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "encoding/json"

// TaskStatus is a point-in-time copy of the task engine state, as exposed
// by the control surface. An empty Task or Error means none and is encoded
// as null.
type TaskStatus struct {
	Running  bool     `json:"running"`
	Task     string   `json:"task"`
	Logs     []string `json:"logs"`
	Progress int      `json:"progress"`
	Total    int      `json:"total"`
	Error    string   `json:"error"`
}

// MarshalJSON implements json.Marshaler.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	type plain TaskStatus
	return json.Marshal(struct {
		plain
		Task  *string `json:"task"`
		Error *string `json:"error"`
	}{plain(s), nullable(s.Task), nullable(s.Error)})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Settings are the operator-editable values read at the start of every
// Analyze run.
type Settings struct {
	RoleDescription string  `json:"role_description" yaml:"role_description"`
	Threshold       float64 `json:"threshold" yaml:"threshold"`
	APIKey          string  `json:"-" yaml:"-"`
	Model           string  `json:"model" yaml:"model"`
	DeepModel       string  `json:"deep_model" yaml:"deep_model"`
}

// HasCredential reports whether an API key is configured.
func (s Settings) HasCredential() bool {
	return s.APIKey != ""
}
