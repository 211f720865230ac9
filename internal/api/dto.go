package api

import (
	"github.com/starford/yamui/internal/binding"
	"github.com/starford/yamui/internal/control"
	"github.com/starford/yamui/internal/trace"
)

// StateEntry is one state key and its value.
type StateEntry struct {
	Key   string `json:"key" example:"count"`
	Value string `json:"value" example:"3"`
}

// SetStateRequest is the body of PUT /api/state/{key}. Value may be a
// string, number or boolean.
type SetStateRequest struct {
	Value any `json:"value"`
}

// NavigateRequest is the body of POST /api/nav/{op}.
type NavigateRequest struct {
	Screen    string `json:"screen,omitempty"`
	Component string `json:"component,omitempty"`
}

// EventRequest is the optional body of a widget event.
type EventRequest struct {
	binding.EventInfo
}

// NativeRequest is the body of POST /api/natives/{name}.
type NativeRequest struct {
	Args []any `json:"args"`
}

// StateListResponse is the body of GET /api/state.
type StateListResponse struct {
	State map[string]string `json:"state" validate:"required"`
}

// ScreenListResponse is the body of GET /api/screens.
type ScreenListResponse struct {
	Screens []control.ScreenInfo `json:"screens" validate:"required"`
}

// DocumentListResponse is the body of GET /api/documents.
type DocumentListResponse struct {
	Documents []control.DocumentInfo `json:"documents" validate:"required"`
}

// NativeListResponse is the body of GET /api/natives.
type NativeListResponse struct {
	Natives []string `json:"natives" example:"beep" validate:"required"`
}

// TraceResponse is the body of GET /api/trace.
type TraceResponse struct {
	Events []trace.Record `json:"events" validate:"required"`
}
