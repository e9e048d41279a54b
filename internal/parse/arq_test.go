package parse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arqEmail(body string) []byte {
	return []byte(strings.Join([]string{
		"From: Arq <arq@example.com>",
		"Date: Mon, 01 Jan 2024 10:30:00 +0000",
		"Subject: Arq backup report",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n"))
}

func TestArqParser_Report(t *testing.T) {
	raw := arqEmail(strings.Join([]string{
		"Backup report for laptop",
		"Started: 2024-01-01T09:00:00Z",
		"Duration: 01:02:03",
		"Files: 1,204",
		"Size: 2.5 GB",
		"Error: /Users/x/locked.db: permission denied",
		"Error: /Users/x/gone: no such file",
	}, "\r\n"))

	m, err := NewArqParser().ExtractEmailMetrics(raw)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), m.BackupDate)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second, m.Duration)
	assert.Equal(t, int64(1204), m.TotalItems)
	assert.Equal(t, int64(2500000000), m.TotalBytes)
	assert.Equal(t, int64(2), m.ErrorCount)
	assert.Equal(t, []string{"/Users/x/locked.db: permission denied", "/Users/x/gone: no such file"}, m.ErrorMessages)
}

func TestArqParser_FallsBackToDateHeader(t *testing.T) {
	m, err := NewArqParser().ExtractEmailMetrics(arqEmail("Files: 3\r\nErrors: 0"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC), m.BackupDate)
	assert.Equal(t, int64(3), m.TotalItems)
	assert.Zero(t, m.ErrorCount)
}

func TestArqParser_Multipart(t *testing.T) {
	raw := strings.Join([]string{
		"From: arq@example.com",
		"Date: Mon, 01 Jan 2024 10:30:00 +0000",
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=\"alt\"",
		"",
		"--alt",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Files: 99</p>",
		"--alt",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Files: 5",
		"--alt--",
		"",
	}, "\r\n")

	m, err := NewArqParser().ExtractEmailMetrics([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(5), m.TotalItems)
}

func TestArqParser_BadValue(t *testing.T) {
	for _, body := range []string{"Size: lots", "Files: -3", "Errors: -2", "Size: 20 EB"} {
		_, err := NewArqParser().ExtractEmailMetrics(arqEmail(body))
		assert.ErrorIs(t, err, ErrInvalidReport, body)
	}
}

func TestParseArqDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"90s":      90 * time.Second,
		"02:30":    150 * time.Second,
		"00:00:10": 10 * time.Second,
	}
	for in, want := range cases {
		got, err := parseArqDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseArqDuration("soon")
	assert.Error(t, err)
}
