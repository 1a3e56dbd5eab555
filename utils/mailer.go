package utils

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends transactional mail over SMTP.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// SendInviteEmail notifies a user that they were added to a client workspace.
// Callers treat failures as best-effort; the membership is created either way.
func (m *Mailer) SendInviteEmail(to, clientName, inviterName string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("You've been invited to %s", clientName))
	msg.SetBody("text/html", fmt.Sprintf(
		"<p>%s invited you to join <b>%s</b>.</p><p>Log in to accept the invitation.</p>",
		inviterName, clientName,
	))

	d := gomail.NewDialer(m.host, m.port, m.username, m.password)
	return d.DialAndSend(msg)
}
