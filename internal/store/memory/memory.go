// Package memory is an in-process Store used by tests. A
// single mutex stands in for the conditional-write and atomic-add
// primitives of the real backends.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/store"
)

type BackupRecord struct {
	Meta      models.BackupResultMeta
	Metrics   models.BackupResultMetrics
	CreatedAt time.Time
}

type Store struct {
	mu      sync.Mutex
	clients map[string]*models.ClientRecord
	backups map[string]BackupRecord
	metrics map[string]map[string]map[int]models.Counters
}

func New() *Store {
	return &Store{
		clients: map[string]*models.ClientRecord{},
		backups: map[string]BackupRecord{},
		metrics: map[string]map[string]map[int]models.Counters{},
	}
}

// PutClient registers a client, replacing any existing record.
func (s *Store) PutClient(clientID, clientKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = &models.ClientRecord{ClientID: clientID, ClientKey: clientKey}
}

func (s *Store) GetClient(_ context.Context, clientID string, attributes []string) (*models.ClientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if len(attributes) == 0 {
		cp := *c
		return &cp, nil
	}
	out := &models.ClientRecord{}
	for _, attr := range attributes {
		switch attr {
		case store.AttrClientID:
			out.ClientID = c.ClientID
		case store.AttrClientKey:
			out.ClientKey = c.ClientKey
		case store.AttrBackupCount:
			out.BackupCount = c.BackupCount
		case store.AttrTotalBytes:
			out.TotalBytes = c.TotalBytes
		case store.AttrTotalItems:
			out.TotalItems = c.TotalItems
		case store.AttrErrorCount:
			out.ErrorCount = c.ErrorCount
		}
	}
	return out, nil
}

func (s *Store) AddBackupResult(_ context.Context, meta models.BackupResultMeta, metrics models.BackupResultMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.backups[meta.BackupID]; exists {
		return store.ErrConditionFailed
	}
	s.backups[meta.BackupID] = BackupRecord{Meta: meta, Metrics: metrics, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *Store) AddClientTotals(_ context.Context, clientID string, delta models.ClientTotals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return store.ErrConditionFailed
	}
	c.BackupCount += delta.BackupCount
	c.TotalBytes += delta.TotalBytes
	c.TotalItems += delta.TotalItems
	c.ErrorCount += delta.ErrorCount
	return nil
}

func (s *Store) AddClientMetric(_ context.Context, inc models.MetricIncrement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMetric, ok := s.metrics[inc.ClientID]
	if !ok {
		byMetric = map[string]map[int]models.Counters{}
		s.metrics[inc.ClientID] = byMetric
	}
	periods, ok := byMetric[inc.MetricID]
	if !ok {
		periods = map[int]models.Counters{}
		byMetric[inc.MetricID] = periods
	}
	for period, counters := range inc.Periods {
		cur := periods[period]
		cur.Add(counters)
		periods[period] = cur
	}
	return nil
}

// Backup returns a stored backup record.
func (s *Store) Backup(backupID string) (BackupRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backups[backupID]
	return b, ok
}

// Metric returns a copy of a client's metric bucket.
func (s *Store) Metric(clientID, metricID string) map[int]models.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int]models.Counters{}
	for period, c := range s.metrics[clientID][metricID] {
		out[period] = c
	}
	return out
}

// MetricCount returns how many metric buckets exist for a client.
func (s *Store) MetricCount(clientID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.metrics[clientID])
}
