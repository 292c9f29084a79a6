// Package templates renders the HTML bodies of auth emails.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
)

const layout = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f4f4f7; padding: 24px;">
  <div style="max-width: 560px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
    <h2 style="color: #1f2937;">HireHeaven</h2>
    {{template "content" .}}
    <p style="color: #9ca3af; font-size: 12px; margin-top: 32px;">If you did not request this, you can ignore this email.</p>
  </div>
</body>
</html>`

var (
	passwordReset = mustParse("password-reset", `{{define "content"}}
    <p>We received a request to reset your password.</p>
    <p><a href="{{.Link}}" style="background: #2563eb; color: #ffffff; padding: 12px 20px; border-radius: 6px; text-decoration: none;">Reset password</a></p>
    <p>The link expires in 15 minutes.</p>
{{end}}`)

	verifyEmail = mustParse("verify-email", `{{define "content"}}
    <p>Welcome to HireHeaven! Please confirm your email address.</p>
    <p><a href="{{.Link}}" style="background: #16a34a; color: #ffffff; padding: 12px 20px; border-radius: 6px; text-decoration: none;">Verify email</a></p>
{{end}}`)

	otp = mustParse("otp", `{{define "content"}}
    <p>Your verification code is:</p>
    <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
    <p>The code expires in 5 minutes.</p>
{{end}}`)
)

func mustParse(name, content string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(layout)).Parse(content))
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func PasswordReset(link string) (string, error) {
	return render(passwordReset, struct{ Link string }{link})
}

func VerifyEmail(link string) (string, error) {
	return render(verifyEmail, struct{ Link string }{link})
}

func OTP(code string) (string, error) {
	return render(otp, struct{ Code string }{code})
}
