package receiving

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
)

type fakeSubmitter struct {
	messageID  string
	recipients []string
	raw        []byte
	err        error
}

func (f *fakeSubmitter) SubmitEmail(_ context.Context, messageID string, recipients []string, raw []byte) error {
	f.messageID = messageID
	f.recipients = recipients
	f.raw = raw
	return f.err
}

func newTestSession(sub *fakeSubmitter) *session {
	srv := NewServer(":0", "mx.domain.com", newTestVerifier(), sub)
	sess, _ := srv.NewSession(nil)
	return sess.(*session)
}

func smtpCode(err error) int {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return smtpErr.Code
	}
	return 0
}

func TestSessionRcpt(t *testing.T) {
	sess := newTestSession(&fakeSubmitter{})

	if err := sess.Rcpt("bak+arq.c1.key1@domain.com", nil); err != nil {
		t.Fatalf("expected verified recipient to be accepted: %v", err)
	}
	if code := smtpCode(sess.Rcpt("bak+arq.c1.nope@domain.com", nil)); code != 550 {
		t.Errorf("expected 550 for key mismatch, got %d", code)
	}
	if code := smtpCode(sess.Rcpt("bak+arq.c2.key1@domain.com", nil)); code != 550 {
		t.Errorf("expected 550 for unknown client, got %d", code)
	}
	if code := smtpCode(sess.Rcpt("postmaster@domain.com", nil)); code != 550 {
		t.Errorf("expected 550 for non-receiving address, got %d", code)
	}
	if len(sess.to) != 1 {
		t.Errorf("expected 1 accepted recipient, got %d", len(sess.to))
	}
}

func TestSessionData_UsesMessageID(t *testing.T) {
	sub := &fakeSubmitter{}
	sess := newTestSession(sub)
	if err := sess.Rcpt("bak+arq.c1.key1@domain.com", nil); err != nil {
		t.Fatal(err)
	}

	raw := "Message-ID: <abc/123@host.example>\r\nSubject: Backup\r\n\r\nbody"
	if err := sess.Data(strings.NewReader(raw)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.messageID != "abc_123@host.example" {
		t.Errorf("unexpected message id %q", sub.messageID)
	}
	if string(sub.raw) != raw {
		t.Errorf("raw message was not passed through")
	}
	if len(sub.recipients) != 1 {
		t.Errorf("expected 1 recipient, got %d", len(sub.recipients))
	}
}

func TestSessionData_NoRecipient(t *testing.T) {
	sess := newTestSession(&fakeSubmitter{})
	if err := sess.Data(strings.NewReader("Subject: x\r\n\r\nbody")); err == nil {
		t.Fatal("expected error without recipients")
	}
}

func TestSessionData_SubmitFailureIsTemporary(t *testing.T) {
	sess := newTestSession(&fakeSubmitter{err: errors.New("queue down")})
	if err := sess.Rcpt("bak+arq.c1.key1@domain.com", nil); err != nil {
		t.Fatal(err)
	}
	if code := smtpCode(sess.Data(strings.NewReader("Subject: x\r\n\r\nbody"))); code != 451 {
		t.Errorf("expected 451, got %d", code)
	}
}

func TestMessageIDFor_FallsBackToRandom(t *testing.T) {
	a := MessageIDFor([]byte("Subject: x\r\n\r\nbody"))
	b := MessageIDFor([]byte("Subject: x\r\n\r\nbody"))
	if a == "" || a == b {
		t.Errorf("expected distinct generated ids, got %q and %q", a, b)
	}
}

func TestMessageIDFor_NoDotRuns(t *testing.T) {
	for _, h := range []string{"<report..1@mac.example>", "<a...b@host..example>", "<..@..>"} {
		id := MessageIDFor([]byte("Message-ID: " + h + "\r\n\r\nbody"))
		if id == "" || strings.Contains(id, "..") || strings.Contains(id, "/") {
			t.Errorf("%s: unsafe id %q", h, id)
		}
	}
}
