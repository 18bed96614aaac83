package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Links are the frontend URLs embedded in outgoing mails.
type Links struct {
	ConfirmationURL string
}

type Mailer struct {
	from  string
	host  string
	port  string
	auth  smtp.Auth
	links Links
}

func New(address, password, host, port string, links Links) *Mailer {
	return &Mailer{
		from:  address,
		host:  host,
		port:  port,
		auth:  smtp.PlainAuth("", address, password, host),
		links: links,
	}
}

func (m *Mailer) SendSubscriptionConfirmation(to, token string) error {
	link := fmt.Sprintf("%s?token=%s", m.links.ConfirmationURL, token)
	body := fmt.Sprintf(
		"Thanks for subscribing to HK Academy!\r\n\r\n"+
			"Please confirm your subscription by following this link:\r\n\r\n%s\r\n\r\n"+
			"If you did not request this, you can ignore this email.\r\n",
		link,
	)
	return m.send(to, "Confirm your subscription", body)
}

func (m *Mailer) send(to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	if err := smtp.SendMail(addr, m.auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending email to[%s]: %w", to, err)
	}
	return nil
}
