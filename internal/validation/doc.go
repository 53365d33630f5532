// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

// Package validation provides struct validation using go-playground/validator v10.
//
// The package exposes a thread-safe singleton validator with the custom
// "profileid" tag registered, and translates validator errors into
// human-readable messages and the API error format.
//
// # Usage
//
//	type Request struct {
//	    ProfileID string `validate:"required,profileid,max=256"`
//	    Limit     int    `validate:"min=0"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// ValidateStruct returns a *RequestValidationError; compare it against nil
// before converting it to the error interface.
package validation
