// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Expense and category bodies may arrive as JSON, urlencoded forms or
// multipart forms carrying a receipt file.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/receipts"
	"expensetracker/internal/services"
)

// multipartMemory bounds the part of a multipart body kept in memory.
const multipartMemory = 1 << 20

// flexString accepts a JSON string or a bare JSON number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

type expensePayload struct {
	Amount   flexString `json:"amount"`
	Category string     `json:"category"`
	Date     string     `json:"date"`
}

type categoryPayload struct {
	Name string `json:"name"`
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// decodeJSON reads one JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errRequestTooLarge
		}
		return &badRequest{err: err}
	}
	return nil
}

// parseFormBody parses urlencoded or multipart bodies.
func parseFormBody(r *http.Request) error {
	var err error
	if mediaType(r) == "multipart/form-data" {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errRequestTooLarge
	}
	return &badRequest{err: err}
}

// ParseExpenseRequest builds a RecordExpenseRequest from a JSON, form or
// multipart body. The body is limited to maxBytes; a missing date means today.
func ParseExpenseRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (services.RecordExpenseRequest, error) {
	var req services.RecordExpenseRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartMemory)

	var p expensePayload
	if mediaType(r) == "application/json" {
		if err := decodeJSON(r, &p); err != nil {
			return req, err
		}
	} else {
		if err := parseFormBody(r); err != nil {
			return req, err
		}
		p = expensePayload{
			Amount:   flexString(r.FormValue("amount")),
			Category: r.FormValue("category"),
			Date:     r.FormValue("date"),
		}
		f, err := readReceipt(r, maxBytes)
		if err != nil {
			return req, err
		}
		req.Receipt = f
	}

	amount, err := core.ParseAmount(string(p.Amount))
	if err != nil {
		return req, fmt.Errorf("%w: %q", err, sanitizeInput(string(p.Amount)))
	}
	req.Amount = amount
	req.Category = sanitizeInput(p.Category)

	req.Date = core.Today()
	if d := strings.TrimSpace(p.Date); d != "" {
		req.Date, err = core.ParseDate(d)
		if err != nil {
			return req, err
		}
	}
	return req, nil
}

// readReceipt returns the optional "receipt" file of a multipart form.
func readReceipt(r *http.Request, maxBytes int64) (*receipts.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile("receipt")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &badRequest{err: err}
	}
	defer file.Close()

	if header.Size > maxBytes {
		return nil, fmt.Errorf("%w: receipt exceeds %d bytes", errRequestTooLarge, maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, &badRequest{err: err}
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: receipt exceeds %d bytes", errRequestTooLarge, maxBytes)
	}
	if len(data) == 0 {
		return nil, nil
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &receipts.File{Name: header.Filename, ContentType: contentType, Data: data}, nil
}

// ParseCategoryName reads the category name from a JSON or form body.
func ParseCategoryName(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if mediaType(r) == "application/json" {
		var p categoryPayload
		if err := decodeJSON(r, &p); err != nil {
			return "", err
		}
		return sanitizeInput(p.Name), nil
	}
	if err := parseFormBody(r); err != nil {
		return "", err
	}
	return sanitizeInput(r.FormValue("name")), nil
}
