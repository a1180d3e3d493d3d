package mailer

import (
	"bytes"
	"embed"
	"html/template"
	ttemplate "text/template"
	"time"

	"github.com/go-mail/mail/v2"
)

//go:embed "templates"
var templateFS embed.FS

// Mailer sends templated e-mails through an SMTP server.
type Mailer struct {
	dialer *mail.Dialer
	sender string
}

// New returns a Mailer whose SMTP connections time out after 5 seconds.
func New(host string, port int, username, password, sender string) Mailer {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second

	return Mailer{
		dialer: dialer,
		sender: sender,
	}
}

// message is a rendered e-mail ready to hand to the SMTP dialer.
type message struct {
	subject   string
	plainBody string
	htmlBody  string
}

// render executes the "subject", "plainBody" and "htmlBody" templates
// defined in templates/<templateFile>.
func render(templateFile string, data any) (*message, error) {
	tmpl, err := ttemplate.New("email").ParseFS(templateFS, "templates/"+templateFile)
	if err != nil {
		return nil, err
	}

	subject := new(bytes.Buffer)
	if err = tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return nil, err
	}

	plainBody := new(bytes.Buffer)
	if err = tmpl.ExecuteTemplate(plainBody, "plainBody", data); err != nil {
		return nil, err
	}

	// The HTML part goes through html/template so data is escaped.
	htmlTmpl, err := template.New("email").ParseFS(templateFS, "templates/"+templateFile)
	if err != nil {
		return nil, err
	}

	htmlBody := new(bytes.Buffer)
	if err = htmlTmpl.ExecuteTemplate(htmlBody, "htmlBody", data); err != nil {
		return nil, err
	}

	return &message{
		subject:   subject.String(),
		plainBody: plainBody.String(),
		htmlBody:  htmlBody.String(),
	}, nil
}

// Send renders templateFile with data and delivers it to recipient.
// Each call opens and closes its own SMTP connection.
func (m Mailer) Send(recipient, templateFile string, data any) error {
	rendered, err := render(templateFile, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("To", recipient)
	msg.SetHeader("From", m.sender)
	msg.SetHeader("Subject", rendered.subject)
	msg.SetBody("text/plain", rendered.plainBody)
	msg.AddAlternative("text/html", rendered.htmlBody)

	return m.dialer.DialAndSend(msg)
}
