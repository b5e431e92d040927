package models

type APIResponse struct {
	Success  bool        `json:"success"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Code     string      `json:"code,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}
