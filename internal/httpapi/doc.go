// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the auth service as a JSON API under /api.
//
//	POST /api/users/register        create an account
//	POST /api/users/login/initiate  send an OTP to the account's email
//	POST /api/users/login/verify    exchange the OTP for an access token
//	GET  /api/home                  bearer-protected greeting
//
// Failures are written as {"error": kind, "message": text}, where kind is
// the auth.Kind of the error.
package httpapi
