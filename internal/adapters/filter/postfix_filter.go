package filter

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/utils"
	"go.uber.org/zap"
)

// PostfixFilter implements a Postfix after-queue content filter
type PostfixFilter struct {
	service        *core.PhishingService
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
	listenAddr     string
	server         *smtp.Server
	blockPhishing  bool
	phishingHeader string
	scoreHeader    string
	reasonsHeader  string
	postfixAddr    string
	postfixPort    int
	postfixEnabled bool
	subjectPrefix  string
	modifySubject  bool
	deliver        func(sender string, recipients []string, data []byte) error
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *core.PhishingService,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
	listenAddr string,
	blockPhishing bool,
	phishingHeader string,
	scoreHeader string,
	reasonsHeader string,
	postfixAddr string,
	postfixPort int,
	postfixEnabled bool,
	subjectPrefix string,
	modifySubject bool,
) *PostfixFilter {
	if subjectPrefix == "" && modifySubject {
		subjectPrefix = "[PHISHING] "
	}

	f := &PostfixFilter{
		service:        service,
		logger:         logger,
		textProcessor:  textProcessor,
		listenAddr:     listenAddr,
		blockPhishing:  blockPhishing,
		phishingHeader: phishingHeader,
		scoreHeader:    scoreHeader,
		reasonsHeader:  reasonsHeader,
		postfixAddr:    postfixAddr,
		postfixPort:    postfixPort,
		postfixEnabled: postfixEnabled,
		subjectPrefix:  subjectPrefix,
		modifySubject:  modifySubject,
	}
	f.deliver = f.sendToPostfix
	return f
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	// Bind synchronously so address errors surface to the caller
	ln, err := net.Listen("tcp", f.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.listenAddr, err)
	}

	f.logger.Info("Postfix filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.Serve(ln); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage analyzes a message without going through SMTP
func (f *PostfixFilter) ProcessMessage(ctx context.Context, msg *core.Message) (*core.Analysis, error) {
	return f.service.Analyze(ctx, msg)
}

// filterMessage analyzes raw message data and returns the rewritten message.
// A non-nil *smtp.SMTPError means the message must be rejected.
func (f *PostfixFilter) filterMessage(ctx context.Context, envelopeSender string, raw []byte) ([]byte, error) {
	msg, err := ParseMessage(raw, f.textProcessor)
	if err != nil {
		return nil, err
	}
	if msg.Sender == "" {
		msg.Sender = envelopeSender
	}

	senderDomain := core.SenderDomain(msg.Sender)
	if senderDomain == "" {
		senderDomain = "unknown"
	}

	analysis, analysisErr := f.service.Analyze(ctx, msg)
	if analysisErr != nil {
		f.logger.Error("Failed to analyze message",
			zap.Error(analysisErr),
			zap.String("sender", msg.Sender),
			zap.String("sender_domain", senderDomain))

		fields := []headerField{
			{name: f.phishingHeader, value: "unknown"},
			{name: "X-Phishing-Analysis-Error", value: analysisErr.Error()},
		}
		return rewriteHeaders(raw, fields, ""), nil
	}

	if analysis.IsPhishing && f.blockPhishing {
		f.logger.Info("Rejecting phishing message",
			zap.String("from", msg.Sender),
			zap.String("sender_domain", senderDomain),
			zap.Int("score", analysis.Score),
			zap.Strings("reasons", analysis.Reasons))
		return nil, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as phishing (score: %d)", analysis.Score),
		}
	}

	fields := []headerField{
		{name: f.phishingHeader, value: strconv.FormatBool(analysis.IsPhishing)},
		{name: f.scoreHeader, value: strconv.Itoa(analysis.Score)},
	}
	if len(analysis.Reasons) > 0 {
		fields = append(fields, headerField{name: f.reasonsHeader, value: strings.Join(analysis.Reasons, "; ")})
	}

	newSubject := ""
	if analysis.IsPhishing && f.modifySubject && !strings.HasPrefix(msg.Subject, f.subjectPrefix) {
		newSubject = f.subjectPrefix + msg.Subject
	}

	f.logger.Info("Processed message",
		zap.String("from", msg.Sender),
		zap.String("sender_domain", senderDomain),
		zap.Bool("is_phishing", analysis.IsPhishing),
		zap.Int("score", analysis.Score),
		zap.Bool("cached", analysis.Cached))

	return rewriteHeaders(raw, fields, newSubject), nil
}

// sendToPostfix sends the processed message back to Postfix on the configured port
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	postfixAddr := net.JoinHostPort(f.postfixAddr, strconv.Itoa(f.postfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// Already delivered, a failed QUIT is only logged
	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyzes the message and re-injects it to Postfix
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := s.filter.filterMessage(ctx, s.sender, raw)
	if err != nil {
		return err
	}

	if !s.filter.postfixEnabled {
		s.filter.logger.Warn("Postfix forwarding disabled, message dropped after analysis",
			zap.String("sender", s.sender))
		return nil
	}

	if err := s.filter.deliver(s.sender, s.recipients, out); err != nil {
		s.filter.logger.Error("Failed to send message back to Postfix",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}
	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
