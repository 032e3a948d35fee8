package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lostandfound/internal/models"
	"lostandfound/internal/utils"
)

// In-memory doubles behind the repository interfaces, shared by the service
// tests. All of them are safe for concurrent use.

// --- users ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[int]*models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByPhone(phone string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) SetCredential(userID int, passwordHash string, mustChange bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("set credential: user %d not found", userID)
	}
	u.PasswordHash = passwordHash
	u.MustChangePassword = mustChange
	return nil
}

func (r *fakeUserRepo) MarkPhoneVerified(userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		now := time.Now()
		u.PhoneVerified = true
		u.VerifiedAt = &now
	}
	return nil
}

// state inspects the stored user directly.
func (r *fakeUserRepo) state(id int) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

// --- verification codes ---

type fakeCodeRepo struct {
	mu    sync.Mutex
	seq   int64
	codes []*models.VerificationCode

	// error injection for the storage-failure paths
	failGetLatest bool
	failIncrement bool
	failConsume   bool
}

func newFakeCodeRepo() *fakeCodeRepo { return &fakeCodeRepo{} }

func (r *fakeCodeRepo) Issue(code *models.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, c := range r.codes {
		if c.Identifier == code.Identifier && c.Purpose == code.Purpose && !c.Consumed && c.ExpiresAt.After(now) {
			c.ExpiresAt = now
		}
	}
	r.seq++
	code.ID = r.seq
	cp := *code
	r.codes = append(r.codes, &cp)
	return nil
}

func (r *fakeCodeRepo) GetLatest(identifier, purpose string) (*models.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGetLatest {
		return nil, fmt.Errorf("storage unavailable")
	}
	for i := len(r.codes) - 1; i >= 0; i-- {
		c := r.codes[i]
		if c.Identifier == identifier && c.Purpose == purpose {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCodeRepo) IncrementAttempts(id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIncrement {
		return 0, fmt.Errorf("storage unavailable")
	}
	for _, c := range r.codes {
		if c.ID == id {
			c.Attempts++
			return c.Attempts, nil
		}
	}
	return 0, fmt.Errorf("code %d not found", id)
}

func (r *fakeCodeRepo) ExpireNow(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.ID == id {
			c.ExpiresAt = time.Now()
		}
	}
	return nil
}

func (r *fakeCodeRepo) Consume(id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failConsume {
		return false, fmt.Errorf("storage unavailable")
	}
	for _, c := range r.codes {
		if c.ID == id && !c.Consumed && c.ExpiresAt.After(time.Now()) {
			c.Consumed = true
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCodeRepo) CountRecentSends(identifier, purpose string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.codes {
		if c.Identifier == identifier && c.Purpose == purpose && !c.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// livePending counts unconsumed, unexpired codes for the pair.
func (r *fakeCodeRepo) livePending(identifier, purpose string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	n := 0
	for _, c := range r.codes {
		if c.Identifier == identifier && c.Purpose == purpose && !c.Consumed && c.ExpiresAt.After(now) {
			n++
		}
	}
	return n
}

// expire backdates the latest code for the pair so TTL paths run without sleeping.
func (r *fakeCodeRepo) expire(identifier, purpose string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.codes) - 1; i >= 0; i-- {
		c := r.codes[i]
		if c.Identifier == identifier && c.Purpose == purpose {
			c.ExpiresAt = time.Now().Add(-time.Minute)
			return
		}
	}
}

// backdateSends moves sent_at outside the resend window.
func (r *fakeCodeRepo) backdateSends(identifier, purpose string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.Identifier == identifier && c.Purpose == purpose {
			c.SentAt = c.SentAt.Add(-d)
		}
	}
}

// --- reset tokens ---

type fakeTokenRepo struct {
	mu     sync.Mutex
	seq    int
	tokens []*models.ResetToken
	users  *fakeUserRepo
}

func newFakeTokenRepo(users *fakeUserRepo) *fakeTokenRepo {
	return &fakeTokenRepo{users: users}
}

func (r *fakeTokenRepo) Issue(identifier, token string, expiresAt time.Time) (*models.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, t := range r.tokens {
		if t.Identifier == identifier && t.UsedAt == nil && t.ExpiresAt.After(now) {
			t.ExpiresAt = now
		}
	}
	r.seq++
	rt := &models.ResetToken{ID: r.seq, Identifier: identifier, Token: token, ExpiresAt: expiresAt, CreatedAt: now}
	r.tokens = append(r.tokens, rt)
	cp := *rt
	return &cp, nil
}

func (r *fakeTokenRepo) GetByToken(token string) (*models.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeTokenRepo) ConsumeAndRotate(token, passwordHash string) (*models.ResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token != token {
			continue
		}
		now := time.Now()
		if t.UsedAt != nil || !t.ExpiresAt.After(now) {
			return nil, nil
		}
		t.UsedAt = &now

		r.users.mu.Lock()
		for _, u := range r.users.users {
			if u.Email == t.Identifier {
				u.PasswordHash = passwordHash
				u.MustChangePassword = false
			}
		}
		r.users.mu.Unlock()

		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeTokenRepo) expire(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == token {
			t.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

// --- auth events ---

type fakeEventRepo struct {
	mu     sync.Mutex
	seq    int64
	events []*models.AuthEvent
}

func newFakeEventRepo() *fakeEventRepo { return &fakeEventRepo{} }

func (r *fakeEventRepo) Insert(e *models.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.ID = r.seq
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := *e
	r.events = append(r.events, &cp)
	return nil
}

func (r *fakeEventRepo) matches(e *models.AuthEvent, f models.AuthEventFilter) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Identifier != "" && !strings.Contains(e.Identifier, f.Identifier) {
		return false
	}
	return true
}

func (r *fakeEventRepo) List(f models.AuthEventFilter) ([]*models.AuthEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuthEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < f.Limit; i-- {
		if r.matches(r.events[i], f) {
			cp := *r.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) Stats(f models.AuthEventFilter) (*models.AuthEventStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &models.AuthEventStats{ByType: map[string]int{}}
	for _, e := range r.events {
		if !r.matches(e, f) {
			continue
		}
		stats.Total++
		if e.Success {
			stats.Success++
		} else {
			stats.Failed++
		}
		stats.ByType[e.Type]++
	}
	return stats, nil
}

func (r *fakeEventRepo) CountSince(since time.Time, onlyFailed bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		if onlyFailed && e.Success {
			continue
		}
		n++
	}
	return n, nil
}

func (r *fakeEventRepo) CountFailures(identifier, eventType string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Identifier == identifier && e.Type == eventType && !e.Success && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeEventRepo) FailureCounts(eventType string, since time.Time, min int) ([]models.SuspiciousIdentifier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, e := range r.events {
		if e.Type == eventType && !e.Success && !e.CreatedAt.Before(since) {
			counts[e.Identifier]++
		}
	}
	var out []models.SuspiciousIdentifier
	for id, n := range counts {
		if n >= min {
			out = append(out, models.SuspiciousIdentifier{Identifier: id, FailureCount: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FailureCount != out[j].FailureCount {
			return out[i].FailureCount > out[j].FailureCount
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out, nil
}

// add appends an event with an explicit timestamp.
func (r *fakeEventRepo) add(eventType, identifier string, success bool, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.events = append(r.events, &models.AuthEvent{
		ID: r.seq, Type: eventType, Identifier: identifier, Success: success, CreatedAt: at,
	})
}

func (r *fakeEventRepo) last() *models.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	cp := *r.events[len(r.events)-1]
	return &cp
}

// --- channel senders ---

type sentSMS struct {
	To   string
	Text string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentSMS
	fail bool
}

func (s *fakeSender) SendSMS(to, text string) (*utils.SendSMSResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, fmt.Errorf("provider unavailable")
	}
	s.sent = append(s.sent, sentSMS{To: to, Text: text})
	return &utils.SendSMSResponse{}, nil
}

// lastCode extracts the code from the most recent message text.
func (s *fakeSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return strings.TrimPrefix(s.sent[len(s.sent)-1].Text, "Verification code: ")
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeEmailService struct {
	mu      sync.Mutex
	resets  []string // tokens sent
	notices []string // addresses notified
	fail    bool
}

func (s *fakeEmailService) SendPasswordResetEmail(email, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("smtp unavailable")
	}
	s.resets = append(s.resets, token)
	return nil
}

func (s *fakeEmailService) SendPasswordChangedNotice(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("smtp unavailable")
	}
	s.notices = append(s.notices, email)
	return nil
}

func (s *fakeEmailService) lastToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.resets) == 0 {
		return ""
	}
	return s.resets[len(s.resets)-1]
}

// --- audit recorder ---

// recordingAudit captures events without a backing store.
type recordingAudit struct {
	mu     sync.Mutex
	events []*models.AuthEvent
}

func (a *recordingAudit) Record(eventType, identifier string, success bool, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, &models.AuthEvent{
		Type: eventType, Identifier: identifier, Success: success, Detail: detail, CreatedAt: time.Now(),
	})
}

func (a *recordingAudit) Query(f models.AuthEventFilter) ([]*models.AuthEvent, *models.AuthEventStats, error) {
	return nil, nil, nil
}

func (a *recordingAudit) count(eventType string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (a *recordingAudit) last() *models.AuthEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return nil
	}
	return a.events[len(a.events)-1]
}
