package main

import (
	"time"

	"github.com/hivemindhq/decision-engine/decisiontable"
)

// API request and response models.

// EvaluateRequest is the decision request sent by workflow runtimes.
type EvaluateRequest struct {
	TableID string         `json:"tableId"`
	Inputs  map[string]any `json:"inputs"`
}

// EvaluateResponse echoes the table id and carries the matched outputs.
type EvaluateResponse struct {
	TableID        string         `json:"tableId"`
	Matched        bool           `json:"matched"`
	Default        bool           `json:"default,omitempty"`
	Outputs        map[string]any `json:"outputs,omitempty"`
	EvaluationTime string         `json:"evaluationTime"`
}

// CreateTableRequest is the request body for registering a table. The ID is
// assigned by the server.
type CreateTableRequest struct {
	Name    string                       `json:"name"`
	Inputs  []decisiontable.InputColumn  `json:"inputs"`
	Outputs []decisiontable.OutputColumn `json:"outputs"`
	Rows    []decisiontable.Row          `json:"rows"`
}

// UpdateTableRequest is the request body for replacing a table definition.
type UpdateTableRequest struct {
	Name    string                       `json:"name"`
	Inputs  []decisiontable.InputColumn  `json:"inputs"`
	Outputs []decisiontable.OutputColumn `json:"outputs"`
	Rows    []decisiontable.Row          `json:"rows"`
}

// TableResponse is a table definition in API responses.
type TableResponse struct {
	ID        string                       `json:"id"`
	Name      string                       `json:"name"`
	Inputs    []decisiontable.InputColumn  `json:"inputs"`
	Outputs   []decisiontable.OutputColumn `json:"outputs"`
	Rows      []decisiontable.Row          `json:"rows"`
	CreatedAt time.Time                    `json:"createdAt"`
	UpdatedAt time.Time                    `json:"updatedAt"`
}

// TablesListResponse lists the tenant's tables.
type TablesListResponse struct {
	Tables []TableResponse `json:"tables"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func tableResponse(def *decisiontable.Definition) TableResponse {
	return TableResponse{
		ID:        def.ID,
		Name:      def.Name,
		Inputs:    def.Inputs,
		Outputs:   def.Outputs,
		Rows:      def.Rows,
		CreatedAt: def.CreatedAt,
		UpdatedAt: def.UpdatedAt,
	}
}
