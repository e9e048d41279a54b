package parse

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// emailText returns the first text/plain part of a MIME message and its
// Date header. Non-multipart messages count as one text part.
func emailText(raw []byte) (string, time.Time, error) {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: read message: %v", ErrInvalidReport, err)
	}
	defer reader.Close()

	date, _ := reader.Header.Date()

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", date, fmt.Errorf("%w: read part: %v", ErrInvalidReport, err)
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := header.ContentType()
		if mediaType != "" && !strings.HasPrefix(mediaType, "text/plain") {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return "", date, fmt.Errorf("%w: read body: %v", ErrInvalidReport, err)
		}
		return string(body), date, nil
	}
	return "", date, fmt.Errorf("%w: no text/plain part", ErrInvalidReport)
}
