// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

// Package services adapts Cinematch components to suture.Service.
//
// Every service blocks in Serve until its context is canceled, returns
// ctx.Err() on a clean stop, and returns a wrapped error on failure so the
// supervisor restarts it. Shutdown work uses a fresh context bounded by the
// service's shutdown timeout because the Serve context is already done.
package services
