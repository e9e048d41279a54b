// Package parse extracts backup result metrics from delivered content. Each
// backup type has one Parser that declares which delivery channels it
// supports by implementing the matching extractor interfaces.
package parse

import (
	"errors"
	"fmt"
	"sort"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/recipient"
)

var (
	// ErrParserNotFound and ErrUnsupportedDelivery are configuration errors.
	ErrParserNotFound      = errors.New("parser not available")
	ErrUnsupportedDelivery = errors.New("parser does not support delivery type")

	ErrInvalidParser = errors.New("invalid parser")
	ErrInvalidReport = errors.New("invalid backup report")
)

type Parser interface {
	BackupType() string
}

type EmailMetricsExtractor interface {
	ExtractEmailMetrics(content []byte) (*models.BackupResultMetrics, error)
}

type HTTPPostMetricsExtractor interface {
	ExtractHTTPPostMetrics(content []byte) (*models.BackupResultMetrics, error)
}

// Registry maps backup types to parsers. It is filled at startup and only
// read afterwards.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{}}
}

// NewDefaultRegistry returns a Registry with the built-in parsers.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, p := range []Parser{NewArqParser(), NewJSONParser()} {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds p. It fails if the backup type is malformed or already
// taken, or if p supports no delivery type at all.
func (r *Registry) Register(p Parser) error {
	backupType := p.BackupType()
	if !recipient.IsValidBackupType(backupType) {
		return fmt.Errorf("%w: backup type %q", ErrInvalidParser, backupType)
	}
	if _, exists := r.parsers[backupType]; exists {
		return fmt.Errorf("%w: duplicate backup type %q", ErrInvalidParser, backupType)
	}
	_, email := p.(EmailMetricsExtractor)
	_, httpPost := p.(HTTPPostMetricsExtractor)
	if !email && !httpPost {
		return fmt.Errorf("%w: %q supports no delivery type", ErrInvalidParser, backupType)
	}
	r.parsers[backupType] = p
	return nil
}

// BackupTypes returns the registered backup types in sorted order.
func (r *Registry) BackupTypes() []string {
	types := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Supports reports whether backupType has a parser for deliveryType.
func (r *Registry) Supports(deliveryType, backupType string) bool {
	p, ok := r.parsers[backupType]
	if !ok {
		return false
	}
	switch deliveryType {
	case models.DeliveryTypeEmail:
		_, ok = p.(EmailMetricsExtractor)
	case models.DeliveryTypeHTTP:
		_, ok = p.(HTTPPostMetricsExtractor)
	default:
		ok = false
	}
	return ok
}

func (r *Registry) ExtractEmailMetrics(backupType string, content []byte) (*models.BackupResultMetrics, error) {
	p, ok := r.parsers[backupType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParserNotFound, backupType)
	}
	ex, ok := p.(EmailMetricsExtractor)
	if !ok {
		return nil, fmt.Errorf("%w: %q via email", ErrUnsupportedDelivery, backupType)
	}
	return ex.ExtractEmailMetrics(content)
}

func (r *Registry) ExtractHTTPPostMetrics(backupType string, content []byte) (*models.BackupResultMetrics, error) {
	p, ok := r.parsers[backupType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParserNotFound, backupType)
	}
	ex, ok := p.(HTTPPostMetricsExtractor)
	if !ok {
		return nil, fmt.Errorf("%w: %q via HTTP post", ErrUnsupportedDelivery, backupType)
	}
	return ex.ExtractHTTPPostMetrics(content)
}

// Extract dispatches on deliveryType.
func (r *Registry) Extract(deliveryType, backupType string, content []byte) (*models.BackupResultMetrics, error) {
	switch deliveryType {
	case models.DeliveryTypeEmail:
		return r.ExtractEmailMetrics(backupType, content)
	case models.DeliveryTypeHTTP:
		return r.ExtractHTTPPostMetrics(backupType, content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDelivery, deliveryType)
	}
}
