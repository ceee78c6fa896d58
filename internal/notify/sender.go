package notify

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"skyflow/internal/config"
	"skyflow/internal/models"
)

// Sender delivers agreement decision notices. Delivery is best effort;
// a failed send never fails the decision itself.
type Sender interface {
	SendAgreementDecision(ctx context.Context, toEmail string, status models.AgreementStatus, apartmentNo string) error
}

type LogSender struct{}

func (LogSender) SendAgreementDecision(ctx context.Context, toEmail string, status models.AgreementStatus, apartmentNo string) error {
	_ = ctx
	log.Printf("agreement decision notice to=%s status=%s apartment=%s", toEmail, status, apartmentNo)
	return nil
}

type SMTPSender struct {
	host string
	port int
	from string
}

func NewSender(cfg config.Config) Sender {
	switch cfg.NotifySender {
	case "smtp":
		return SMTPSender{
			host: cfg.SMTPHost,
			port: cfg.SMTPPort,
			from: cfg.NotifyFrom,
		}
	default:
		return LogSender{}
	}
}

func (s SMTPSender) SendAgreementDecision(ctx context.Context, toEmail string, status models.AgreementStatus, apartmentNo string) error {
	_ = ctx
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	subject := "Your rental agreement request"
	var line string
	switch status {
	case models.AgreementApproved:
		line = fmt.Sprintf("Your agreement for apartment %s has been approved. Welcome aboard.", apartmentNo)
	case models.AgreementRejected:
		line = fmt.Sprintf("Your agreement request for apartment %s has been rejected.", apartmentNo)
	case models.AgreementBooked:
		line = fmt.Sprintf("Apartment %s has been booked for you pending final checks.", apartmentNo)
	case models.AgreementChecked:
		line = fmt.Sprintf("Your agreement for apartment %s passed final checks.", apartmentNo)
	default:
		line = fmt.Sprintf("Your agreement for apartment %s is now %s.", apartmentNo, status)
	}
	body := "Subject: " + subject + "\r\n\r\n" + line + "\r\n"
	return smtp.SendMail(addr, nil, s.from, []string{toEmail}, []byte(body))
}
