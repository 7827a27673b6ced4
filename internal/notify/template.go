// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"bytes"
	"html/template"
	"time"

	"github.com/samber/oops"
)

var otpEmailTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<style>
body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; background-color: #111827; color: #F3F4F6; margin: 0; }
.card { max-width: 560px; margin: 40px auto; background-color: #1F2937; border-radius: 12px; padding: 32px; }
.code { background-color: #374151; border-radius: 8px; padding: 16px; text-align: center; color: #60A5FA; font-size: 32px; font-weight: bold; letter-spacing: 4px; }
.info { color: #9CA3AF; font-size: 14px; text-align: center; margin-top: 24px; }
</style>
</head>
<body>
<div class="card">
<h1>Welcome back!</h1>
<p>Here's your one-time verification code</p>
<div class="code">{{.Code}}</div>
<p class="info">This code will expire in {{.Minutes}} {{if eq .Minutes 1}}minute{{else}}minutes{{end}}.<br>
If you didn't request this code, please ignore this email.</p>
<p class="info">This is an automated message, please do not reply.</p>
</div>
</body>
</html>
`))

// RenderOTPEmail renders the HTML body for a code valid for ttl.
func RenderOTPEmail(code string, ttl time.Duration) (string, error) {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	var buf bytes.Buffer
	err := otpEmailTemplate.Execute(&buf, struct {
		Code    string
		Minutes int
	}{Code: code, Minutes: minutes})
	if err != nil {
		return "", oops.Code("NOTIFY_TEMPLATE_FAILED").Wrap(err)
	}
	return buf.String(), nil
}
