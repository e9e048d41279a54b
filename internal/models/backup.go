package models

import "time"

const (
	DeliveryTypeEmail = "email"
	DeliveryTypeHTTP  = "http"
)

// EmailRecipient is a receiving address split into its routing parts:
// {prefix}+{backupType}.{clientId}.{clientKey}@{domain}.
type EmailRecipient struct {
	Original   string `json:"original"`
	Prefix     string `json:"prefix"`
	BackupType string `json:"backupType"`
	ClientID   string `json:"clientId"`
	ClientKey  string `json:"-"`
	Domain     string `json:"domain"`
}

// BackupResultMeta identifies an accepted delivery. BackupID addresses the
// stored source content, e.g. "email/<messageId>".
type BackupResultMeta struct {
	DeliveryType string `json:"deliveryType"`
	ClientID     string `json:"clientId"`
	ClientKey    string `json:"-"`
	BackupType   string `json:"backupType"`
	BackupID     string `json:"backupId"`
}

type BackupResultMetrics struct {
	BackupDate    time.Time     `json:"backupDate"`
	Duration      time.Duration `json:"duration"`
	TotalItems    int64         `json:"totalItems"`
	TotalBytes    int64         `json:"totalBytes"`
	ErrorCount    int64         `json:"errorCount"`
	ErrorMessages []string      `json:"errorMessages,omitempty"`
}

type ClientRecord struct {
	ClientID    string `dynamodbav:"clientId"`
	ClientKey   string `dynamodbav:"clientKey"`
	BackupCount int64  `dynamodbav:"backupCount"`
	TotalBytes  int64  `dynamodbav:"totalBytes"`
	TotalItems  int64  `dynamodbav:"totalItems"`
	ErrorCount  int64  `dynamodbav:"errorCount"`
}

// Counters is one period's worth of additive usage figures.
type Counters struct {
	Count  int64
	Bytes  int64
	Items  int64
	Errors int64
}

// Empty reports whether no counter is positive.
func (c Counters) Empty() bool {
	return c.Count <= 0 && c.Bytes <= 0 && c.Items <= 0 && c.Errors <= 0
}

// Fields returns the positive counters keyed by field name. Metric writes
// only ever add, so anything else is left out.
func (c Counters) Fields() map[string]int64 {
	fields := make(map[string]int64, 4)
	if c.Count > 0 {
		fields["count"] = c.Count
	}
	if c.Bytes > 0 {
		fields["bytes"] = c.Bytes
	}
	if c.Items > 0 {
		fields["items"] = c.Items
	}
	if c.Errors > 0 {
		fields["errors"] = c.Errors
	}
	return fields
}

func (c *Counters) Add(o Counters) {
	c.Count += o.Count
	c.Bytes += o.Bytes
	c.Items += o.Items
	c.Errors += o.Errors
}

// ClientTotals is an increment of the lifetime client record.
type ClientTotals struct {
	BackupCount int64
	TotalBytes  int64
	TotalItems  int64
	ErrorCount  int64
}

// MetricIncrement adds Periods to the bucket (ClientID, MetricID). MetricID is
// "monthly-{year}" or "weekly-{weekYear}"; periods are months or ISO weeks.
type MetricIncrement struct {
	ClientID string
	MetricID string
	Periods  map[int]Counters
}

type QueueMessage struct {
	ID            string
	Body          []byte
	ReceiptHandle string
	ReceiveCount  int
	SentAt        time.Time
}

type OrphanedBackupResultContent struct {
	DeliveryType string    `json:"deliveryType"`
	BackupID     string    `json:"backupId"`
	CreateDate   time.Time `json:"createDate"`
}
