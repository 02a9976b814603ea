package service

import (
	"bytes"
	"html/template"
	"math"
	"time"

	"github.com/revivereads/marketplace/internal/core/domain"
	"github.com/revivereads/marketplace/internal/core/ports"
)

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "welcome"}}<p>Hi {{.Name}},</p>
<p>Welcome to ReviveReads! You can now list your used books and chat with other readers.</p>{{end}}
{{define "otp"}}<p>Hi {{.Name}},</p>
<p>Your ReviveReads verification code is <strong>{{.Code}}</strong>.</p>
<p>It expires in {{.Minutes}} minutes. If you did not try to sign in, change your password.</p>{{end}}
{{define "reset"}}<p>Hi {{.Name}},</p>
<p>We received a request to reset your password. Use the link below within {{.Minutes}} minutes:</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not request this, you can ignore this email.</p>{{end}}
`))

type emailData struct {
	Name    string
	Code    string
	Link    string
	Minutes int
}

func renderEmail(to, subject, name string, data emailData) (ports.Email, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return ports.Email{}, err
	}
	return ports.Email{To: to, Subject: subject, HTML: buf.String()}, nil
}

func welcomeEmail(u *domain.User) (ports.Email, error) {
	return renderEmail(u.Email, "Welcome to ReviveReads", "welcome", emailData{Name: u.Name})
}

func otpEmail(u *domain.User, code string, ttl time.Duration) (ports.Email, error) {
	return renderEmail(u.Email, "Your ReviveReads verification code", "otp", emailData{
		Name:    u.Name,
		Code:    code,
		Minutes: int(math.Ceil(ttl.Minutes())),
	})
}

func resetEmail(u *domain.User, link string, ttl time.Duration) (ports.Email, error) {
	return renderEmail(u.Email, "Reset your ReviveReads password", "reset", emailData{
		Name:    u.Name,
		Link:    link,
		Minutes: int(math.Ceil(ttl.Minutes())),
	})
}
