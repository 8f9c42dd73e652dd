package utils

import (
	"fmt"
	"os"
	"strconv"

	"review-hub-backend/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Initialize the SMTP mailer once and store it in a global variable
var mailer *gomail.Dialer

// InitializeMailer sets up the mailer from SMTP_* variables. Without
// SMTP_HOST mail stays disabled.
func InitializeMailer() {
	mailHost := config.GetEnv("SMTP_HOST")
	if mailHost == "" {
		config.Logger.Info("SMTP_HOST not set, email notifications disabled")
		return
	}
	mailPort := config.GetEnv("SMTP_PORT", "25")

	port, err := strconv.Atoi(mailPort)
	if err != nil {
		config.Logger.Error("Invalid SMTP_PORT value, defaulting to port 25",
			zap.String("provided_port", mailPort),
			zap.Error(err),
		)
		port = 25
	}

	mailer = gomail.NewDialer(mailHost, port, config.GetEnv("SMTP_USER"), config.GetEnv("SMTP_PASSWORD"))
	config.Logger.Info("Mailer initialized successfully")
}

// MailerConfigured reports whether InitializeMailer found SMTP settings.
func MailerConfigured() bool {
	return mailer != nil
}

// SendEmail sends a plain text email with an optional attachment.
func SendEmail(email string, message string, title string, attachmentPath string) error {
	if mailer == nil {
		err := fmt.Errorf("mailer is not initialized")
		config.Logger.Error("Email send failed: mailer is not initialized",
			zap.String("to_email", email),
			zap.String("subject", title),
			zap.Error(err),
		)
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", config.GetEnv("SMTP_FROM", "no-reply@localhost"))
	m.SetHeader("To", email)
	m.SetHeader("Subject", title)
	m.SetBody("text/plain", message)

	if attachmentPath != "" {
		if _, err := os.Stat(attachmentPath); err == nil {
			m.Attach(attachmentPath)
			config.Logger.Debug("Attaching file to email", zap.String("filepath", attachmentPath))
		} else {
			config.Logger.Warn("Attachment file not found for email",
				zap.String("filepath", attachmentPath),
				zap.String("to_email", email),
				zap.Error(err),
			)
		}
	}

	if err := mailer.DialAndSend(m); err != nil {
		config.Logger.Error("Failed to send email via SMTP",
			zap.String("to_email", email),
			zap.String("subject", title),
			zap.Bool("has_attachment", attachmentPath != ""),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	config.Logger.Info("Email sent successfully",
		zap.String("to_email", email),
		zap.String("subject", title),
	)
	return nil
}
