package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type usersStub struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func (u *usersStub) add(user *domain.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[user.ID] = user
}

func (u *usersStub) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	copied := *user
	return &copied, nil
}

func (u *usersStub) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, username)
}

func (u *usersStub) UpdateUser(ctx context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	stored, ok := u.users[user.ID]
	if !ok || stored.Version != user.Version {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, user.ID)
	}
	user.Version++
	copied := *user
	u.users[user.ID] = &copied
	return nil
}

func (u *usersStub) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	user, err := u.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.FullName, nil
}

// storeStub is a settlement.Store backed by maps.
type storeStub struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*domain.ScheduleRecord
	requests map[uuid.UUID]*domain.SettlementRequest
	approves int
	// approvals that panic before touching anything
	panics int
}

func newStoreStub() *storeStub {
	return &storeStub{
		records:  make(map[uuid.UUID]*domain.ScheduleRecord),
		requests: make(map[uuid.UUID]*domain.SettlementRequest),
	}
}

func (s *storeStub) CreateScheduleRecord(ctx context.Context, record *domain.ScheduleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = uuid.New()
	record.CreatedAt = time.Now()
	copied := *record
	s.records[record.ID] = &copied
	return nil
}

func (s *storeStub) GetScheduleRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.ScheduleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := []*domain.ScheduleRecord{}
	for _, record := range s.records {
		if record.OwnerID == ownerID {
			copied := *record
			records = append(records, &copied)
		}
	}
	return records, nil
}

func (s *storeStub) CreateSettlementRequest(ctx context.Context, req *domain.SettlementRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = uuid.New()
	req.RequestedAt = time.Now()
	copied := *req
	s.requests[req.ID] = &copied
	return nil
}

func (s *storeStub) GetSettlementRequestByID(ctx context.Context, id uuid.UUID) (*domain.SettlementRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement request %s", domain.ErrNotFound, id)
	}
	copied := *req
	return &copied, nil
}

func (s *storeStub) GetPendingSettlementRequests(ctx context.Context) ([]*domain.SettlementRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := []*domain.SettlementRequest{}
	for _, req := range s.requests {
		if req.Status == domain.SettlementStatusPending {
			copied := *req
			reqs = append(reqs, &copied)
		}
	}
	return reqs, nil
}

func (s *storeStub) GetSettlementRequestsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.SettlementRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reqs := []*domain.SettlementRequest{}
	for _, req := range s.requests {
		if req.OwnerID == ownerID {
			copied := *req
			reqs = append(reqs, &copied)
		}
	}
	return reqs, nil
}

func (s *storeStub) ApproveSettlementRequest(ctx context.Context, id uuid.UUID, approvedBy uuid.UUID) (*domain.SettlementApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approves++
	if s.panics > 0 {
		s.panics--
		panic("approval blew up")
	}

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: settlement request %s", domain.ErrNotFound, id)
	}
	if req.Status != domain.SettlementStatusPending {
		return nil, fmt.Errorf("%w: settlement request %s is %s", domain.ErrInvalidState, id, req.Status)
	}

	now := time.Now()
	var deleted, total int64
	for recordID, record := range s.records {
		if record.OwnerID == req.OwnerID {
			total += record.Wage
			deleted++
			delete(s.records, recordID)
		}
	}
	req.Status = domain.SettlementStatusApproved
	req.ApprovedAt = &now
	req.ApprovedBy = &approvedBy
	req.DeletedRecords = deleted

	copied := *req
	return &domain.SettlementApproval{Request: &copied, DeletedRecords: deleted, ScheduledTotal: total}, nil
}

func (s *storeStub) approveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.approves
}

type notifierStub struct{}

func (notifierStub) Notify(ctx context.Context, kind domain.NotificationKind, payload domain.NotificationPayload) error {
	return nil
}

// redisStub covers the commands the idempotency store issues.
type redisStub struct {
	mu     sync.Mutex
	values map[string]string
}

func (r *redisStub) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	r.values[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (r *redisStub) Get(ctx context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (r *redisStub) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		r.values[key] = string(v)
	default:
		r.values[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (r *redisStub) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := r.values[key]; ok {
			delete(r.values, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}
