package parse

import (
	"errors"
	"testing"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bareParser struct{ backupType string }

func (p bareParser) BackupType() string { return p.backupType }

type httpOnlyParser struct{ bareParser }

func (httpOnlyParser) ExtractHTTPPostMetrics([]byte) (*models.BackupResultMetrics, error) {
	return &models.BackupResultMetrics{TotalItems: 7}, nil
}

func TestRegister_Validation(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.Register(bareParser{"custom"}), ErrInvalidParser, "no capability")
	assert.ErrorIs(t, r.Register(httpOnlyParser{bareParser{"Bad Type"}}), ErrInvalidParser, "invalid backup type")

	require.NoError(t, r.Register(httpOnlyParser{bareParser{"custom"}}))
	assert.ErrorIs(t, r.Register(httpOnlyParser{bareParser{"custom"}}), ErrInvalidParser, "duplicate")
	assert.Equal(t, []string{"custom"}, r.BackupTypes())
}

func TestExtract_ConfigurationErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(httpOnlyParser{bareParser{"custom"}}))

	_, err := r.ExtractEmailMetrics("missing", nil)
	assert.ErrorIs(t, err, ErrParserNotFound)

	_, err = r.ExtractEmailMetrics("custom", nil)
	assert.ErrorIs(t, err, ErrUnsupportedDelivery)

	_, err = r.Extract("carrier-pigeon", "custom", nil)
	assert.ErrorIs(t, err, ErrUnsupportedDelivery)

	m, err := r.Extract(models.DeliveryTypeHTTP, "custom", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.TotalItems)

	assert.True(t, r.Supports(models.DeliveryTypeHTTP, "custom"))
	assert.False(t, r.Supports(models.DeliveryTypeEmail, "custom"))
	assert.False(t, errors.Is(err, ErrInvalidReport))
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{"arq", "json"}, r.BackupTypes())
	assert.True(t, r.Supports(models.DeliveryTypeEmail, "arq"))
	assert.False(t, r.Supports(models.DeliveryTypeHTTP, "arq"))
	assert.True(t, r.Supports(models.DeliveryTypeEmail, "json"))
	assert.True(t, r.Supports(models.DeliveryTypeHTTP, "json"))
}
