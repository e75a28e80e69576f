package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vk/paramfn/internal/model"
	"github.com/vk/paramfn/internal/registry"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

type messageBody struct {
	Message string `json:"message"`
}

// FunctionSummary is one element of the list response.
type FunctionSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateRequest is the body of POST /functions. Code is the older name of
// Source and is used when Source is empty.
type CreateRequest struct {
	Name            string            `json:"name"`
	Source          string            `json:"source,omitempty"`
	Code            string            `json:"code,omitempty"`
	Description     string            `json:"description,omitempty"`
	InputSignature  *model.Signature  `json:"input_signature,omitempty"`
	OutputSignature *model.Signature  `json:"output_signature,omitempty"`
	Parameters      []model.Parameter `json:"parameters,omitempty"`
}

// UpdateRequest is the body of PUT /functions/{name}.
type UpdateRequest struct {
	model.Patch
	Code *string `json:"code,omitempty"`
}

// ComputeRequest is the body of POST /functions/{name}/compute.
type ComputeRequest struct {
	X      *[]float64         `json:"x"`
	Params map[string]float64 `json:"params,omitempty"`
}

// FunctionData is the response of GET /functions/{name}/data.
type FunctionData struct {
	InputSignature  model.Signature   `json:"input_signature"`
	OutputSignature model.Signature   `json:"output_signature"`
	Parameters      []model.Parameter `json:"parameters"`
	Arguments       []string          `json:"arguments"`
	Uses            []string          `json:"uses"`
}

// NewFunctionData builds the metadata view of an inspected function.
func NewFunctionData(info *registry.Inspection) FunctionData {
	return FunctionData{
		InputSignature:  info.Definition.InputSignature,
		OutputSignature: info.Definition.OutputSignature,
		Parameters:      info.Definition.Parameters,
		Arguments:       info.Args,
		Uses:            info.Calls,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func (s *server) banner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageBody{Message: ServiceName})
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) listFunctions(w http.ResponseWriter, r *http.Request) {
	defs := s.reg.List(r.Context())
	out := make([]FunctionSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, FunctionSummary{Name: d.Name, Description: d.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) createFunction(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name == "" {
		writeError(w, r, fmt.Errorf("%w: Field 'name' is required", errBadRequest))
		return
	}
	if req.Source == "" {
		req.Source = req.Code
	}
	if req.Source == "" {
		writeError(w, r, fmt.Errorf("%w: Field 'source' is required", errBadRequest))
		return
	}

	def := &model.Definition{
		Name:        req.Name,
		Source:      req.Source,
		Description: req.Description,
		Parameters:  req.Parameters,
	}
	if req.InputSignature != nil {
		def.InputSignature = *req.InputSignature
	}
	if req.OutputSignature != nil {
		def.OutputSignature = *req.OutputSignature
	}

	if _, err := s.reg.Create(r.Context(), def); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageBody{Message: fmt.Sprintf("Function '%s' created successfully", req.Name)})
}

func (s *server) getFunction(w http.ResponseWriter, r *http.Request) {
	def, err := s.reg.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *server) updateFunction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req UpdateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Source == nil {
		req.Source = req.Code
	}

	if _, err := s.reg.Update(r.Context(), name, req.Patch); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("Function '%s' updated successfully", name)})
}

func (s *server) deleteFunction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.reg.Delete(r.Context(), name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: fmt.Sprintf("Function '%s' deleted successfully", name)})
}

func (s *server) computeFunction(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.X == nil {
		writeError(w, r, fmt.Errorf("%w: Field 'x' is required", errBadRequest))
		return
	}

	ys, err := s.reg.Compute(r.Context(), chi.URLParam(r, "name"), *req.X, req.Params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	computedPoints.Add(float64(len(ys)))
	writeJSON(w, http.StatusOK, ys)
}

func (s *server) functionData(w http.ResponseWriter, r *http.Request) {
	info, err := s.reg.Inspect(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewFunctionData(info))
}
