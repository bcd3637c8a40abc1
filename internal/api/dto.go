package api

import (
	"github.com/starford/serendip/internal/randomnote"
	"github.com/starford/serendip/internal/settings"
)

// RandomResponse is the outcome of one selection run (aliased from the domain layer).
type RandomResponse = randomnote.Result

// SettingsResponse is the stored selection settings (aliased from the domain layer).
type SettingsResponse = settings.Settings

// SetModeRequest is the request body for changing the random mode.
type SetModeRequest struct {
	Mode string `json:"mode" example:"tags" validate:"required"`
	// Go runs a selection right after the mode is stored.
	Go bool `json:"go" example:"true"`
}

// SetModeResponse returns the updated settings and, when requested, the run.
type SetModeResponse struct {
	Settings SettingsResponse `json:"settings" validate:"required"`
	Result   *RandomResponse  `json:"result,omitempty"`
}

// CycleResponse describes the repeating trigger.
type CycleResponse struct {
	State    string `json:"state" example:"running" validate:"required"`
	PeriodMS int64  `json:"period_ms" example:"5000" validate:"required"`
}

// QueryResponse is the query the current settings would run.
type QueryResponse struct {
	Mode      string `json:"mode" example:"tags" validate:"required"`
	Lang      string `json:"lang,omitempty" example:"datascript"`
	Query     string `json:"query,omitempty"`
	Namespace string `json:"namespace,omitempty" example:"projects"`
	Warning   string `json:"warning,omitempty"`
}

// BlockContentResponse is a block's resolved text.
type BlockContentResponse struct {
	ID      string `json:"id" example:"6650f0a1-0000-4000-8000-000000000001" validate:"required"`
	Content string `json:"content" validate:"required"`
}
