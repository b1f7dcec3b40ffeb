// Package http provides the JSON API server and its handlers.
//
// This file contains helpers for reading request bodies and path values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"gastos/internal/auth"
	"gastos/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object from the request body into dst.
// An empty body decodes as {} so that required-field checks report the
// missing fields. Decode failures are returned as *core.ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &core.ValidationError{Message: "request body must contain a single JSON object"}
	}
	return nil
}

func bodyError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return &core.ValidationError{Message: "request body must be a JSON object"}
		}
		return &core.ValidationError{Field: typeErr.Field, Message: fmt.Sprintf("must be a %s", jsonKind(typeErr.Type.Kind().String()))}
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &core.ValidationError{Message: "malformed JSON body"}
	case errors.As(err, &maxErr):
		return &core.ValidationError{Message: "request body too large"}
	default:
		return &core.ValidationError{Message: "invalid request body"}
	}
}

func jsonKind(goKind string) string {
	switch goKind {
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
		return "number"
	case "string":
		return "string"
	case "bool":
		return "boolean"
	default:
		return goKind
	}
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

// userID reads the authenticated caller. Routes that call it sit behind the
// bearer middleware, so a missing id is reported as unauthorized.
func userID(r *http.Request) (int64, error) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		return 0, core.ErrUnauthorized
	}
	return id, nil
}
