package templates

import (
	"bytes"
	"fmt"
	"html/template"
)

var applicationStatus = template.Must(template.New("application-status").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f4f4f7; padding: 24px;">
  <div style="max-width: 560px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
    <h2 style="color: #1f2937;">HireHeaven</h2>
    <p>There is an update on your application for <strong>{{.JobTitle}}</strong>.</p>
    {{- if .Status}}
    <p>Current status: <strong>{{.Status}}</strong></p>
    {{- end}}
    <p><a href="{{.Link}}" style="background: #2563eb; color: #ffffff; padding: 12px 20px; border-radius: 6px; text-decoration: none;">View application</a></p>
  </div>
</body>
</html>`))

// ApplicationStatus renders the applicant-facing status change email. An
// empty status leaves the status line out.
func ApplicationStatus(jobTitle, status, link string) (string, error) {
	var buf bytes.Buffer

	data := struct {
		JobTitle, Status, Link string
	}{jobTitle, status, link}

	if err := applicationStatus.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render application-status: %w", err)
	}

	return buf.String(), nil
}
