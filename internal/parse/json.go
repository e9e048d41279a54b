package parse

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/go-playground/validator/v10"
)

// jsonReport is the generic report document. Duration is in seconds.
type jsonReport struct {
	BackupDate    time.Time `json:"backupDate" validate:"required"`
	Duration      float64   `json:"duration" validate:"gte=0"`
	TotalItems    int64     `json:"totalItems" validate:"gte=0"`
	TotalBytes    int64     `json:"totalBytes" validate:"gte=0"`
	ErrorCount    int64     `json:"errorCount" validate:"gte=0"`
	ErrorMessages []string  `json:"errorMessages" validate:"max=100,dive,max=2048"`
}

// JSONParser accepts a JSON report posted directly or sent as the text body
// of an email.
type JSONParser struct {
	validate *validator.Validate
}

func NewJSONParser() *JSONParser {
	return &JSONParser{validate: validator.New()}
}

func (*JSONParser) BackupType() string { return "json" }

func (p *JSONParser) ExtractHTTPPostMetrics(content []byte) (*models.BackupResultMetrics, error) {
	return p.parse(content)
}

func (p *JSONParser) ExtractEmailMetrics(content []byte) (*models.BackupResultMetrics, error) {
	text, _, err := emailText(content)
	if err != nil {
		return nil, err
	}
	return p.parse([]byte(text))
}

func (p *JSONParser) parse(content []byte) (*models.BackupResultMetrics, error) {
	var report jsonReport
	if err := json.Unmarshal(content, &report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if err := p.validate.Struct(report); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return &models.BackupResultMetrics{
		BackupDate:    report.BackupDate.UTC(),
		Duration:      time.Duration(report.Duration * float64(time.Second)),
		TotalItems:    report.TotalItems,
		TotalBytes:    report.TotalBytes,
		ErrorCount:    report.ErrorCount,
		ErrorMessages: report.ErrorMessages,
	}, nil
}
