package mail

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// Sender delivers account mail over SMTP.
type Sender struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
	logger    *zap.Logger
}

func NewSender(host string, port int, user, pass, fromEmail, fromName string, logger *zap.Logger) *Sender {
	return &Sender{
		dialer:    gomail.NewDialer(host, port, user, pass),
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger.Named("mail"),
	}
}

func (s *Sender) send(to, subject, html string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, s.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("send failed", zap.String("to", to), zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	s.logger.Info("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// SendPasswordReset delivers the reset link out-of-band. The token appears
// only here and in the user's inbox.
func (s *Sender) SendPasswordReset(to, name, resetURL string, ttlMinutes int) error {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>A password reset was requested for your account. Follow the link below to choose a new password:</p>
<p><a href="%s">%s</a></p>
<p>The link expires in %d minutes. If you did not request this, ignore this email.</p>`,
		name, resetURL, resetURL, ttlMinutes)
	return s.send(to, "Reset your password", body)
}

func (s *Sender) SendWelcome(to, name string) error {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your account has been created. Welcome aboard!</p>`, name)
	return s.send(to, "Welcome", body)
}
