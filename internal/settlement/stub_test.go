package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/config"
	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/gigmatch-dev/settlement/backend/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var errConnReset = errors.New("connection reset by peer")

// memStore keeps everything in maps behind one mutex, which plays the role of
// the database transaction.
type memStore struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*domain.ScheduleRecord
	requests map[uuid.UUID]*domain.SettlementRequest

	// failures to inject, keyed by method name; each call consumes one
	failures map[string]int
	calls    map[string]int

	// approvals that commit but then report a storage error
	lostAcks int
}

func newMemStore() *memStore {
	return &memStore{
		records:  make(map[uuid.UUID]*domain.ScheduleRecord),
		requests: make(map[uuid.UUID]*domain.SettlementRequest),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (m *memStore) fail(method string, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = times
}

func (m *memStore) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// enter must be called with mu held.
func (m *memStore) enter(method string) error {
	m.calls[method]++
	if m.failures[method] > 0 {
		m.failures[method]--
		return fmt.Errorf("%w: %w", domain.ErrStorage, errConnReset)
	}
	return nil
}

func (m *memStore) CreateScheduleRecord(ctx context.Context, record *domain.ScheduleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateScheduleRecord"); err != nil {
		return err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now()
	copied := *record
	m.records[record.ID] = &copied
	return nil
}

func (m *memStore) GetScheduleRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.ScheduleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetScheduleRecordsByOwner"); err != nil {
		return nil, err
	}

	records := []*domain.ScheduleRecord{}
	for _, record := range m.records {
		if record.OwnerID == ownerID {
			copied := *record
			records = append(records, &copied)
		}
	}
	return records, nil
}

func (m *memStore) CreateSettlementRequest(ctx context.Context, req *domain.SettlementRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateSettlementRequest"); err != nil {
		return err
	}

	req.ID = uuid.New()
	req.Status = domain.SettlementStatusPending
	req.RequestedAt = time.Now()
	copied := *req
	m.requests[req.ID] = &copied
	return nil
}

func (m *memStore) GetSettlementRequestByID(ctx context.Context, id uuid.UUID) (*domain.SettlementRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetSettlementRequestByID"); err != nil {
		return nil, err
	}

	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement request %s", domain.ErrNotFound, id)
	}
	copied := *req
	return &copied, nil
}

func (m *memStore) GetPendingSettlementRequests(ctx context.Context) ([]*domain.SettlementRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetPendingSettlementRequests"); err != nil {
		return nil, err
	}

	reqs := []*domain.SettlementRequest{}
	for _, req := range m.requests {
		if req.Status == domain.SettlementStatusPending {
			copied := *req
			reqs = append(reqs, &copied)
		}
	}
	return reqs, nil
}

func (m *memStore) GetSettlementRequestsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.SettlementRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetSettlementRequestsByOwner"); err != nil {
		return nil, err
	}

	reqs := []*domain.SettlementRequest{}
	for _, req := range m.requests {
		if req.OwnerID == ownerID {
			copied := *req
			reqs = append(reqs, &copied)
		}
	}
	return reqs, nil
}

func (m *memStore) ApproveSettlementRequest(ctx context.Context, id uuid.UUID, approvedBy uuid.UUID) (*domain.SettlementApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ApproveSettlementRequest"); err != nil {
		return nil, err
	}

	req, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement request %s", domain.ErrNotFound, id)
	}
	if req.Status != domain.SettlementStatusPending {
		return nil, fmt.Errorf("%w: settlement request %s is %s", domain.ErrInvalidState, id, req.Status)
	}

	cutoff := time.Now()
	var deleted, total int64
	for recordID, record := range m.records {
		if record.OwnerID == req.OwnerID && !record.CreatedAt.After(cutoff) {
			total += record.Wage
			deleted++
			delete(m.records, recordID)
		}
	}

	req.Status = domain.SettlementStatusApproved
	req.ApprovedAt = &cutoff
	req.ApprovedBy = &approvedBy
	req.DeletedRecords = deleted
	req.ClearedWages = total

	if m.lostAcks > 0 {
		m.lostAcks--
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, errConnReset)
	}

	copied := *req
	return &domain.SettlementApproval{
		Request:        &copied,
		DeletedRecords: deleted,
		ScheduledTotal: total,
	}, nil
}

type recordedNotification struct {
	kind    domain.NotificationKind
	payload domain.NotificationPayload
}

type notifierStub struct {
	mu     sync.Mutex
	sent   []recordedNotification
	failed bool
}

func (n *notifierStub) Notify(ctx context.Context, kind domain.NotificationKind, payload domain.NotificationPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failed {
		return errors.New("broker unavailable")
	}
	n.sent = append(n.sent, recordedNotification{kind: kind, payload: payload})
	return nil
}

func (n *notifierStub) count(kind domain.NotificationKind, ownerID uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, sent := range n.sent {
		if sent.kind == kind && sent.payload.OwnerID == ownerID {
			c++
		}
	}
	return c
}

type directoryStub struct {
	names  map[uuid.UUID]string
	broken map[uuid.UUID]bool
}

func (d *directoryStub) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	if d.broken[userID] {
		return "", errors.New("directory lookup failed")
	}
	name, ok := d.names[userID]
	if !ok {
		return "", fmt.Errorf("%w: user %s", domain.ErrNotFound, userID)
	}
	return name, nil
}

type fixture struct {
	service   *Service
	store     *memStore
	notifier  *notifierStub
	directory *directoryStub
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.Settlement.RetryAttempts = 3
	cfg.Settlement.RetryBackoff = 1
	cfg.RabbitMQ.PublishTimeout = 1

	f := &fixture{
		store:    newMemStore(),
		notifier: &notifierStub{},
		directory: &directoryStub{
			names:  make(map[uuid.UUID]string),
			broken: make(map[uuid.UUID]bool),
		},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.service = NewService(cfg, f.store, f.notifier, f.directory, f.metrics)
	return f
}

func (f *fixture) addRecords(t *testing.T, ownerID uuid.UUID, wages ...int64) {
	t.Helper()
	for _, wage := range wages {
		record := &domain.ScheduleRecord{
			OwnerID:   ownerID,
			Wage:      wage,
			WorkDate:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			StartTime: "09:00:00",
			EndTime:   "18:00:00",
		}
		if err := f.service.AddRecord(context.Background(), record); err != nil {
			t.Fatalf("AddRecord(%d) failed: %v", wage, err)
		}
	}
}
