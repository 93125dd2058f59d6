package mail

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #222;">
    <h2>Hello {{.Name}},</h2>
    <p>Your verification code is:</p>
    <p style="font-size: 32px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
    <p>The code expires in {{.Minutes}} minutes. If you did not request it,
    you can safely ignore this email.</p>
  </body>
</html>`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #222;">
    <h2>Welcome aboard, {{.Name}}!</h2>
    <p>Your email address is verified and your account is ready to use.</p>
  </body>
</html>`))

// OTPMessage renders the verification-code email.
func OTPMessage(name, code string, ttl time.Duration) (subject, body string) {
	var b strings.Builder
	err := otpTemplate.Execute(&b, struct {
		Name    string
		Code    string
		Minutes int
	}{
		Name:    displayName(name),
		Code:    code,
		Minutes: int(ttl.Minutes()),
	})
	if err != nil {
		// Static template over plain fields; execution cannot fail at runtime.
		return "Your verification code", fmt.Sprintf("Your verification code is %s", code)
	}
	return "Your verification code", b.String()
}

// WelcomeMessage renders the post-verification welcome email.
func WelcomeMessage(name string) (subject, body string) {
	var b strings.Builder
	err := welcomeTemplate.Execute(&b, struct{ Name string }{Name: displayName(name)})
	if err != nil {
		return "Welcome!", "Your account is ready to use."
	}
	return "Welcome!", b.String()
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "there"
	}
	return name
}
