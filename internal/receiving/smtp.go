package receiving

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/amekkawi/arq-console/internal/telemetry"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
)

const maxMessageBytes = 10 * 1024 * 1024

// EmailSubmitter stores an accepted email and queues it for ingest.
type EmailSubmitter interface {
	SubmitEmail(ctx context.Context, messageID string, recipients []string, raw []byte) error
}

type Server struct {
	smtpServer *smtp.Server
	verifier   *Verifier
	submitter  EmailSubmitter
}

func NewServer(addr, domain string, verifier *Verifier, submitter EmailSubmitter) *Server {
	s := &Server{
		verifier:  verifier,
		submitter: submitter,
	}

	smtpSrv := smtp.NewServer(s)
	smtpSrv.Addr = addr
	smtpSrv.Domain = domain
	smtpSrv.ReadTimeout = 30 * time.Second
	smtpSrv.WriteTimeout = 30 * time.Second
	smtpSrv.MaxMessageBytes = maxMessageBytes
	smtpSrv.MaxRecipients = 10
	smtpSrv.AllowInsecureAuth = true

	s.smtpServer = smtpSrv
	return s
}

func (s *Server) Start() error {
	slog.Info("inbound SMTP server starting", "addr", s.smtpServer.Addr)
	return s.smtpServer.ListenAndServe()
}

func (s *Server) Shutdown() error {
	return s.smtpServer.Close()
}

// NewSession implements smtp.Backend.
func (s *Server) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{server: s}, nil
}

var (
	errNoSuchRecipient = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      "no such recipient",
	}
	errRecipientRejected = &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 7, 1},
		Message:      "recipient rejected",
	}
	errTryAgain = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "temporary failure, try again later",
	}
)

type session struct {
	server *Server
	from   string
	to     []string
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt accepts only receiving addresses whose client id and key verify.
func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	addr := strings.TrimSpace(to)
	result, err := s.server.verifier.VerifyEmailRecipients(context.Background(), []string{addr})
	if err != nil {
		slog.Error("failed to verify inbound recipient", "to", addr, "error", err)
		return errTryAgain
	}

	switch result.Status {
	case RecipientKeyMatched:
		s.to = append(s.to, addr)
		return nil
	case NoMatches, RecipientClientMissing:
		slog.Warn("inbound email to unknown address", "to", addr, "status", result.Status)
		telemetry.DeliveriesTotal.WithLabelValues("email", "rejected").Inc()
		return errNoSuchRecipient
	default:
		slog.Warn("inbound email with mismatched client key", "client_id", result.Matching[0].ClientID)
		telemetry.DeliveriesTotal.WithLabelValues("email", "rejected").Inc()
		return errRecipientRejected
	}
}

func (s *session) Data(r io.Reader) error {
	if len(s.to) == 0 {
		return errors.New("no valid recipient")
	}

	raw, err := io.ReadAll(io.LimitReader(r, maxMessageBytes))
	if err != nil {
		return err
	}

	messageID := MessageIDFor(raw)
	if err := s.server.submitter.SubmitEmail(context.Background(), messageID, s.to, raw); err != nil {
		slog.Error("failed to submit inbound email", "message_id", messageID, "from", s.from, "error", err)
		return errTryAgain
	}

	telemetry.DeliveriesTotal.WithLabelValues("email", "accepted").Inc()
	slog.Info("inbound email accepted", "message_id", messageID, "from", s.from, "recipients", len(s.to))
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

var (
	unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._@+=-]`)
	dotRuns       = regexp.MustCompile(`\.{2,}`)
)

// MessageIDFor derives a content key from the Message-ID header so an SMTP
// retry of the same message lands on the same backup id. The result never
// contains "/" or "..". Messages without a usable header get a random id.
func MessageIDFor(raw []byte) string {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err == nil {
		defer reader.Close()
		if id, err := reader.Header.MessageID(); err == nil {
			id = unsafeIDChars.ReplaceAllString(id, "_")
			id = dotRuns.ReplaceAllString(id, ".")
			if strings.Trim(id, ".") != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}
