// Package sms delivers one-time codes to phone numbers. Delivery is
// fire-and-forget from the caller's point of view: no delivery receipt is
// consumed, only the send call's own error.
package sms

import "log/slog"

// Sender dispatches a one-time code to a recipient phone number.
type Sender interface {
	Send(phone, code string) error
}

// LogSender writes codes to the log instead of sending them. It stands in for
// a real gateway in development and tests.
type LogSender struct{}

// Send logs the code at info level.
func (LogSender) Send(phone, code string) error {
	slog.Info("sms code issued", "phone", phone, "code", code)
	return nil
}
