// Package email implements an SMTP-based report notifier
package email

import (
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/notifier"
	"github.com/newthinker/buddy/internal/report"
)

// Email implements the Notifier interface for SMTP email
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a new Email notifier
func New(host string, port int, username, password, from string, to []string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
		sendMail: smtp.SendMail,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Init(cfg notifier.Config) error {
	if host, ok := cfg.Params["host"].(string); ok {
		e.host = host
	}
	switch port := cfg.Params["port"].(type) {
	case int:
		e.port = port
	case float64:
		e.port = int(port)
	}
	if username, ok := cfg.Params["username"].(string); ok {
		e.username = username
	}
	if password, ok := cfg.Params["password"].(string); ok {
		e.password = password
	}
	if from, ok := cfg.Params["from"].(string); ok {
		e.from = from
	}
	switch to := cfg.Params["to"].(type) {
	case []string:
		e.to = to
	case []any:
		e.to = e.to[:0]
		for _, addr := range to {
			e.to = append(e.to, fmt.Sprint(addr))
		}
	case string:
		e.to = strings.Split(to, ",")
	}

	if e.port == 0 {
		e.port = 587
	}
	if e.sendMail == nil {
		e.sendMail = smtp.SendMail
	}
	if e.host == "" || e.from == "" || len(e.to) == 0 {
		return fmt.Errorf("email: host, from, and to are required")
	}
	return nil
}

func (e *Email) Send(r report.Report) error {
	subject := fmt.Sprintf("buddy: %s", r.Subject())
	return e.sendEmail(subject, e.formatReportHTML(r))
}

func (e *Email) SendText(text string) error {
	return e.sendEmail("buddy notification", text)
}

func (e *Email) formatReportHTML(r report.Report) string {
	signalColor := "#6c757d" // grey for hold
	if r.LastSignal.IsBuy() {
		signalColor = "#28a745"
	} else if r.LastSignal.IsSell() {
		signalColor = "#dc3545"
	}

	var sb strings.Builder
	sb.WriteString("<html><body>")
	sb.WriteString(fmt.Sprintf(`<h2>%s (%s)</h2>`, html.EscapeString(r.Ticker), html.EscapeString(r.Name)))
	sb.WriteString(fmt.Sprintf(`<p><strong>Last signal:</strong> <span style="color: %s;">%s</span></p>`, signalColor, r.LastSignal.Label()))
	sb.WriteString(fmt.Sprintf(`<p><strong>Total rate:</strong> %s %%</p>`, report.Amount(r.Rate)))
	sb.WriteString(fmt.Sprintf(`<p><strong>Invested amount:</strong> %s $</p>`, report.Amount(r.Invested)))
	sb.WriteString(fmt.Sprintf(`<p><strong>Total account balance:</strong> %s $</p>`, report.Amount(r.Balance)))
	if r.Strategy != "" {
		sb.WriteString(fmt.Sprintf(`<p><strong>Strategy:</strong> %s</p>`, html.EscapeString(r.Strategy)))
	}
	if b := r.Benchmark; b != nil {
		sb.WriteString("<hr>")
		sb.WriteString(fmt.Sprintf(`<p><strong>%s:</strong> %s %%, %s $</p>`, html.EscapeString(b.Ticker), report.Amount(b.Rate), report.Amount(b.Balance)))
	}
	if !r.End.IsZero() {
		sb.WriteString(fmt.Sprintf("<p><small>%s ~ %s</small></p>", r.MinDataDate.Format(time.DateOnly), r.End.Format(time.DateOnly)))
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func (e *Email) sendEmail(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	contentType := "text/plain"
	if strings.HasPrefix(body, "<html>") {
		contentType = "text/html"
	}

	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: %s; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		e.from,
		strings.Join(e.to, ","),
		subject,
		contentType,
		body,
	)

	if err := e.sendMail(addr, auth, e.from, e.to, []byte(msg)); err != nil {
		return core.WrapError(core.ErrUpstreamDelivery, fmt.Errorf("email: %w", err))
	}
	return nil
}
