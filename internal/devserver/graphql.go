package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
)

const maxRequestSize = 1 << 20

type graphqlRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// operationsByField maps a root field to the operation that selects it.
var operationsByField = func() map[string]rpc.Operation {
	m := make(map[string]rpc.Operation, len(rpc.Operations))
	for _, op := range rpc.Operations {
		m[op.Field()] = op
	}
	return m
}()

// rootField returns the first field selected by the named operation, or by
// the first operation when name is empty.
func rootField(query, name string) (string, error) {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return "", err
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok || op.SelectionSet == nil {
			continue
		}
		if name != "" && (op.Name == nil || op.Name.Value != name) {
			continue
		}
		for _, sel := range op.SelectionSet.Selections {
			if f, ok := sel.(*ast.Field); ok && f.Name != nil {
				return f.Name.Value, nil
			}
		}
	}
	return "", fmt.Errorf("document has no operation %q", name)
}

func (s *Server) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope("", errors.New("method not allowed")))
		return
	}

	caller, err := s.backend.Authenticate(
		r.Header.Get(common.PublicKeyHeaderName),
		r.Header.Get(common.TargetEnvironmentHeaderName),
		r.Header.Get(common.IdentityTokenHeaderName),
	)
	if err != nil {
		s.logger.Warn(ctx, "rejected request", "err", err)
		writeJSON(w, http.StatusUnauthorized, errorEnvelope("", err))
		return
	}

	var req graphqlRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope("", fmt.Errorf("malformed request: %w", err)))
		return
	}

	field, err := rootField(req.Query, req.OperationName)
	if err != nil {
		writeJSON(w, http.StatusOK, errorEnvelope("", err))
		return
	}
	op, ok := operationsByField[field]
	if !ok {
		writeJSON(w, http.StatusOK, errorEnvelope(field, fmt.Errorf("unknown field %q", field)))
		return
	}

	result, err := s.backend.Execute(ctx, caller, op, req.Variables)
	if err != nil {
		s.logOpError(ctx, op, err)
		writeJSON(w, http.StatusOK, errorEnvelope(field, err))
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope(field, result))
}

func dataEnvelope(field string, result any) map[string]any {
	return map[string]any{"data": map[string]any{field: result}}
}

func errorEnvelope(field string, err error) map[string]any {
	env := map[string]any{"errors": []any{map[string]any{"message": err.Error()}}}
	if field != "" {
		env["data"] = map[string]any{field: nil}
	}
	return env
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
