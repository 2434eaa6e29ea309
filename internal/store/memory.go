package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newoon/backoffice-server/internal/models"
)

// NewMemory returns repositories backed by process memory
func NewMemory() *Repos {
	return &Repos{
		Accounts:      NewMemoryAccounts(),
		Documents:     NewMemoryDocuments(),
		Notifications: NewMemoryNotifications(),
		Forms:         NewMemoryForms(),
		Intakes:       NewMemoryIntakes(),
		Complaints:    NewMemoryComplaints(),
		Meetings:      NewMemoryMeetings(),
		Roles:         NewMemoryRoles(),
		Catalog:       NewMemoryCatalog(),
		Assignments:   NewMemoryAssignments(),
		ResetTokens:   NewMemoryResetTokens(),
		StageMappings: NewMemoryStageMappings(),
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// --- accounts ---

type MemoryAccounts struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*models.Account
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{accounts: make(map[uuid.UUID]*models.Account)}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.Address != nil {
		addr := *a.Address
		c.Address = &addr
	}
	c.Services = append([]uuid.UUID(nil), a.Services...)
	return &c
}

// taken reports whether another account already owns a's uniqueness key
func (s *MemoryAccounts) taken(a *models.Account) bool {
	for _, existing := range s.accounts {
		if existing.ID == a.ID || existing.Kind != a.Kind {
			continue
		}
		if a.Kind == models.KindAdministrator && strings.EqualFold(existing.Username, a.Username) {
			return true
		}
		if a.Kind == models.KindClient && strings.EqualFold(existing.Email, a.Email) {
			return true
		}
	}
	return false
}

func (s *MemoryAccounts) Create(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken(a) {
		return fmt.Errorf("account %q: %w", a.DisplayName(), ErrConflict)
	}
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *MemoryAccounts) Get(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return cloneAccount(a), nil
}

func (s *MemoryAccounts) FindByLoginIdentifier(_ context.Context, ident string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Kind == models.KindAdministrator && strings.EqualFold(a.Username, ident) {
			return cloneAccount(a), nil
		}
	}
	for _, a := range s.sortedLocked() {
		if a.Kind == models.KindClient && (a.Name == ident || strings.EqualFold(a.Email, ident)) {
			return cloneAccount(a), nil
		}
	}
	return nil, fmt.Errorf("account %q: %w", ident, ErrNotFound)
}

func (s *MemoryAccounts) FindClientByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Kind == models.KindClient && strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, fmt.Errorf("client %q: %w", email, ErrNotFound)
}

func (s *MemoryAccounts) Update(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return fmt.Errorf("account %s: %w", a.ID, ErrNotFound)
	}
	if s.taken(a) {
		return fmt.Errorf("account %q: %w", a.DisplayName(), ErrConflict)
	}
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *MemoryAccounts) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	delete(s.accounts, id)
	return nil
}

func (s *MemoryAccounts) sortedLocked() []*models.Account {
	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryAccounts) List(_ context.Context, f AccountFilter) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Account{}
	for _, a := range s.sortedLocked() {
		if f.match(a) {
			out = append(out, *cloneAccount(a))
		}
	}
	return out, nil
}

func (s *MemoryAccounts) AddService(_ context.Context, accountID, formID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return false, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	if a.HasService(formID) {
		return false, nil
	}
	a.Services = append(a.Services, formID)
	a.UpdatedAt = time.Now()
	return true, nil
}

// --- documents ---

type MemoryDocuments struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*models.Document
}

func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: make(map[uuid.UUID]*models.Document)}
}

func cloneDocument(d *models.Document) *models.Document {
	c := *d
	c.Corrections = cloneStrings(d.Corrections)
	c.MissingFields = cloneStrings(d.MissingFields)
	return &c
}

func (s *MemoryDocuments) Create(_ context.Context, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Version = 1
	s.docs[d.ID] = cloneDocument(d)
	return nil
}

func (s *MemoryDocuments) Get(_ context.Context, id uuid.UUID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return cloneDocument(d), nil
}

func (s *MemoryDocuments) Update(_ context.Context, d *models.Document, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.docs[d.ID]
	if !ok {
		return fmt.Errorf("document %s: %w", d.ID, ErrNotFound)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("document %s at version %d, expected %d: %w", d.ID, current.Version, expectedVersion, ErrConflict)
	}
	d.Version = expectedVersion + 1
	s.docs[d.ID] = cloneDocument(d)
	return nil
}

func (s *MemoryDocuments) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryDocuments) List(_ context.Context, f DocumentFilter) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Document{}
	for _, d := range s.docs {
		if f.match(d) {
			out = append(out, *cloneDocument(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- notifications ---

type MemoryNotifications struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.Notification
}

func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{items: make(map[uuid.UUID]*models.Notification)}
}

func (s *MemoryNotifications) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *n
	s.items[n.ID] = &c
	return nil
}

func (s *MemoryNotifications) ListByAccount(_ context.Context, accountID uuid.UUID) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Notification{}
	for _, n := range s.items {
		if n.AccountID == accountID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryNotifications) MarkRead(_ context.Context, id, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok || n.AccountID != accountID {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	n.IsRead = true
	return nil
}

func (s *MemoryNotifications) DeleteByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, item := range s.items {
		if item.AccountID == accountID {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

// --- forms ---

type MemoryForms struct {
	mu    sync.RWMutex
	forms map[uuid.UUID]*models.Form
}

func NewMemoryForms() *MemoryForms {
	return &MemoryForms{forms: make(map[uuid.UUID]*models.Form)}
}

func cloneForm(f *models.Form) *models.Form {
	c := *f
	c.Fields = append([]models.FormField(nil), f.Fields...)
	return &c
}

func (s *MemoryForms) nameTaken(f *models.Form) bool {
	for _, existing := range s.forms {
		if existing.ID != f.ID && existing.ServiceName == f.ServiceName {
			return true
		}
	}
	return false
}

func (s *MemoryForms) Create(_ context.Context, f *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(f) {
		return fmt.Errorf("form %q: %w", f.ServiceName, ErrConflict)
	}
	s.forms[f.ID] = cloneForm(f)
	return nil
}

func (s *MemoryForms) Get(_ context.Context, id uuid.UUID) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forms[id]
	if !ok {
		return nil, fmt.Errorf("form %s: %w", id, ErrNotFound)
	}
	return cloneForm(f), nil
}

func (s *MemoryForms) GetByName(_ context.Context, serviceName string) (*models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.forms {
		if f.ServiceName == serviceName {
			return cloneForm(f), nil
		}
	}
	return nil, fmt.Errorf("form %q: %w", serviceName, ErrNotFound)
}

func (s *MemoryForms) GetMany(_ context.Context, ids []uuid.UUID) ([]models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Form{}
	for _, id := range ids {
		if f, ok := s.forms[id]; ok {
			out = append(out, *cloneForm(f))
		}
	}
	return out, nil
}

func (s *MemoryForms) List(_ context.Context) ([]models.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Form, 0, len(s.forms))
	for _, f := range s.forms {
		out = append(out, *cloneForm(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryForms) Update(_ context.Context, f *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[f.ID]; !ok {
		return fmt.Errorf("form %s: %w", f.ID, ErrNotFound)
	}
	if s.nameTaken(f) {
		return fmt.Errorf("form %q: %w", f.ServiceName, ErrConflict)
	}
	s.forms[f.ID] = cloneForm(f)
	return nil
}

func (s *MemoryForms) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[id]; !ok {
		return fmt.Errorf("form %s: %w", id, ErrNotFound)
	}
	delete(s.forms, id)
	return nil
}

// --- intake requests ---

type MemoryIntakes struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.IntakeRequest
}

func NewMemoryIntakes() *MemoryIntakes {
	return &MemoryIntakes{items: make(map[uuid.UUID]*models.IntakeRequest)}
}

func (s *MemoryIntakes) Create(_ context.Context, r *models.IntakeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *r
	s.items[r.ID] = &c
	return nil
}

func (s *MemoryIntakes) Get(_ context.Context, id uuid.UUID) (*models.IntakeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("intake request %s: %w", id, ErrNotFound)
	}
	c := *r
	return &c, nil
}

func (s *MemoryIntakes) List(_ context.Context, registered *bool) ([]models.IntakeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.IntakeRequest{}
	for _, r := range s.items {
		if registered != nil && r.IsRegistered != *registered {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryIntakes) FindByEmailAndService(_ context.Context, email, serviceName string) (*models.IntakeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.IntakeRequest
	for _, r := range s.items {
		if strings.EqualFold(r.ClientEmail, email) && r.ServiceName == serviceName {
			if best == nil || r.CreatedAt.Before(best.CreatedAt) {
				best = r
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("intake request %q/%q: %w", email, serviceName, ErrNotFound)
	}
	c := *best
	return &c, nil
}

func (s *MemoryIntakes) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*models.IntakeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("intake request %s: %w", id, ErrNotFound)
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	c := *r
	return &c, nil
}

func (s *MemoryIntakes) MarkRegistered(_ context.Context, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.items {
		if !r.IsRegistered && strings.EqualFold(r.ClientEmail, email) {
			r.IsRegistered = true
			r.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (s *MemoryIntakes) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("intake request %s: %w", id, ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

// --- complaints ---

type MemoryComplaints struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.Complaint
}

func NewMemoryComplaints() *MemoryComplaints {
	return &MemoryComplaints{items: make(map[uuid.UUID]*models.Complaint)}
}

func (s *MemoryComplaints) Create(_ context.Context, c *models.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.items[c.ID] = &cp
	return nil
}

func (s *MemoryComplaints) Get(_ context.Context, id uuid.UUID) (*models.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("complaint %s: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryComplaints) List(_ context.Context, subjects []models.ComplaintSubject) ([]models.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed := make(map[models.ComplaintSubject]bool, len(subjects))
	for _, subj := range subjects {
		allowed[subj] = true
	}
	out := []models.Complaint{}
	for _, c := range s.items {
		if len(allowed) > 0 && !allowed[c.Subject] {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryComplaints) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*models.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("complaint %s: %w", id, ErrNotFound)
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	cp := *c
	return &cp, nil
}

// --- meetings ---

type MemoryMeetings struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.Meeting
}

func NewMemoryMeetings() *MemoryMeetings {
	return &MemoryMeetings{items: make(map[uuid.UUID]*models.Meeting)}
}

func (s *MemoryMeetings) Create(_ context.Context, m *models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.PreferredDate == m.PreferredDate && existing.PreferredTime == m.PreferredTime {
			return fmt.Errorf("meeting slot %s %s: %w", m.PreferredDate, m.PreferredTime, ErrConflict)
		}
	}
	c := *m
	s.items[m.ID] = &c
	return nil
}

func (s *MemoryMeetings) List(_ context.Context) ([]models.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Meeting, 0, len(s.items))
	for _, m := range s.items {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PreferredDate != out[j].PreferredDate {
			return out[i].PreferredDate < out[j].PreferredDate
		}
		return out[i].PreferredTime < out[j].PreferredTime
	})
	return out, nil
}

// --- roles ---

type MemoryRoles struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.Role
}

func NewMemoryRoles() *MemoryRoles {
	return &MemoryRoles{items: make(map[uuid.UUID]*models.Role)}
}

func (s *MemoryRoles) nameTaken(r *models.Role) bool {
	for _, existing := range s.items {
		if existing.ID != r.ID && strings.EqualFold(existing.Name, r.Name) {
			return true
		}
	}
	return false
}

func (s *MemoryRoles) Create(_ context.Context, r *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(r) {
		return fmt.Errorf("role %q: %w", r.Name, ErrConflict)
	}
	c := *r
	s.items[r.ID] = &c
	return nil
}

func (s *MemoryRoles) Get(_ context.Context, id uuid.UUID) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", id, ErrNotFound)
	}
	c := *r
	return &c, nil
}

func (s *MemoryRoles) List(_ context.Context) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Role, 0, len(s.items))
	for _, r := range s.items {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryRoles) Update(_ context.Context, r *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[r.ID]; !ok {
		return fmt.Errorf("role %s: %w", r.ID, ErrNotFound)
	}
	if s.nameTaken(r) {
		return fmt.Errorf("role %q: %w", r.Name, ErrConflict)
	}
	c := *r
	s.items[r.ID] = &c
	return nil
}

func (s *MemoryRoles) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("role %s: %w", id, ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

// --- service catalog ---

type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.CatalogService
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{items: make(map[uuid.UUID]*models.CatalogService)}
}

func (s *MemoryCatalog) Create(_ context.Context, svc *models.CatalogService) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if strings.EqualFold(existing.ServiceName, svc.ServiceName) {
			return fmt.Errorf("service %q: %w", svc.ServiceName, ErrConflict)
		}
	}
	c := *svc
	s.items[svc.ID] = &c
	return nil
}

func (s *MemoryCatalog) List(_ context.Context) ([]models.CatalogService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CatalogService, 0, len(s.items))
	for _, svc := range s.items {
		out = append(out, *svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- role assignments ---

type MemoryAssignments struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*models.RoleAssignment
}

func NewMemoryAssignments() *MemoryAssignments {
	return &MemoryAssignments{items: make(map[uuid.UUID]*models.RoleAssignment)}
}

func (s *MemoryAssignments) Create(_ context.Context, a *models.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *a
	s.items[a.ID] = &c
	return nil
}

func (s *MemoryAssignments) Get(_ context.Context, id uuid.UUID) (*models.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (s *MemoryAssignments) List(_ context.Context) ([]models.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RoleAssignment, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryAssignments) Update(_ context.Context, a *models.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[a.ID]; !ok {
		return fmt.Errorf("assignment %s: %w", a.ID, ErrNotFound)
	}
	c := *a
	s.items[a.ID] = &c
	return nil
}

func (s *MemoryAssignments) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	delete(s.items, id)
	return nil
}

// --- reset tokens ---

type MemoryResetTokens struct {
	mu     sync.Mutex
	tokens map[string]*models.ResetToken
}

func NewMemoryResetTokens() *MemoryResetTokens {
	return &MemoryResetTokens{tokens: make(map[string]*models.ResetToken)}
}

func (s *MemoryResetTokens) Put(_ context.Context, t *models.ResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, existing := range s.tokens {
		if existing.AccountID == t.AccountID {
			delete(s.tokens, hash)
		}
	}
	c := *t
	s.tokens[t.TokenHash] = &c
	return nil
}

func (s *MemoryResetTokens) Consume(_ context.Context, tokenHash string, now time.Time) (*models.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok {
		return nil, fmt.Errorf("reset token: %w", ErrNotFound)
	}
	if !t.ExpiresAt.After(now) {
		delete(s.tokens, tokenHash)
		return nil, fmt.Errorf("reset token expired: %w", ErrNotFound)
	}
	delete(s.tokens, tokenHash)
	return t, nil
}

// --- stage mappings ---

type MemoryStageMappings struct {
	mu sync.RWMutex
	m  map[string]models.Stage
}

// NewMemoryStageMappings starts from DefaultStageMappings
func NewMemoryStageMappings() *MemoryStageMappings {
	return &MemoryStageMappings{m: DefaultStageMappings()}
}

func (s *MemoryStageMappings) StageFor(_ context.Context, role string) (models.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[role]
	if !ok {
		return "", fmt.Errorf("stage for role %q: %w", role, ErrNotFound)
	}
	return st, nil
}

func (s *MemoryStageMappings) Set(_ context.Context, role string, stage models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[role] = stage
	return nil
}

func (s *MemoryStageMappings) List(_ context.Context) (map[string]models.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.Stage, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}
