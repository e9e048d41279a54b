package parse

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/dustin/go-humanize"
)

var arqDateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"Jan 2, 2006 at 3:04:05 PM",
	"Jan 2, 2006 at 3:04:05 PM MST",
}

// ArqParser reads the plain-text report Arq emails after each backup run.
// Report lines look like "Files: 1,204" or "Size: 2.5 GB"; each "Error:" line
// contributes one error message.
type ArqParser struct{}

func NewArqParser() *ArqParser { return &ArqParser{} }

func (*ArqParser) BackupType() string { return "arq" }

func (*ArqParser) ExtractEmailMetrics(content []byte) (*models.BackupResultMetrics, error) {
	text, sent, err := emailText(content)
	if err != nil {
		return nil, err
	}
	m, err := parseArqReport(text)
	if err != nil {
		return nil, err
	}
	if m.BackupDate.IsZero() {
		if sent.IsZero() {
			return nil, fmt.Errorf("%w: no backup date", ErrInvalidReport)
		}
		m.BackupDate = sent.UTC()
	}
	return m, nil
}

func parseArqReport(text string) (*models.BackupResultMetrics, error) {
	m := &models.BackupResultMetrics{}
	errorCountSeen := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "started", "backup date":
			m.BackupDate, err = parseArqDate(value)
		case "duration":
			m.Duration, err = parseArqDuration(value)
		case "files", "items":
			m.TotalItems, err = parseCount(value)
		case "size", "bytes":
			var n uint64
			n, err = humanize.ParseBytes(value)
			if err == nil && n > math.MaxInt64 {
				err = errors.New("size out of range")
			}
			m.TotalBytes = int64(n)
		case "errors":
			m.ErrorCount, err = parseCount(value)
			errorCountSeen = true
		case "error":
			if value != "" {
				m.ErrorMessages = append(m.ErrorMessages, value)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidReport, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	if !errorCountSeen {
		m.ErrorCount = int64(len(m.ErrorMessages))
	}
	return m, nil
}

func parseArqDate(value string) (time.Time, error) {
	for _, layout := range arqDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// parseArqDuration accepts Go durations ("1h2m3s") and clock form ("01:02:03").
func parseArqDuration(value string) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("unrecognised duration %q", value)
	}
	var d time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("unrecognised duration %q", value)
		}
		d = d*60 + time.Duration(n)
	}
	if len(parts) == 2 {
		d *= 60
	}
	return d * time.Second, nil
}

func parseCount(value string) (int64, error) {
	n, err := strconv.ParseInt(strings.ReplaceAll(value, ",", ""), 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
