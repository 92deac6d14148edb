package services

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPMailer struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewSMTPMailer(host string, port int, user, pass, from string) *SMTPMailer {
	if from == "" {
		from = user
	}
	return &SMTPMailer{host: host, port: port, user: user, pass: pass, from: from}
}

func (m *SMTPMailer) SendReviewDecision(to, userName, productID string, approved bool, note string) error {
	subject := "Your review was rejected"
	body := fmt.Sprintf("Hello %s,\n\nYour review of product %s was not approved for publication.", userName, productID)
	if approved {
		subject = "Your review was published"
		body = fmt.Sprintf("Hello %s,\n\nYour review of product %s has been approved and is now live.", userName, productID)
	}
	if note != "" {
		body += fmt.Sprintf("\n\nModerator note: %s", note)
	}
	body += "\n\nChem Admin Team"

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	return d.DialAndSend(msg)
}
