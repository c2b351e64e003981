package store

import (
	"sort"
	"sync"
	"time"

	"taxfolio/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local runs
// without Postgres.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]domain.User // key: user ID
	email  map[string]string      // account email -> user ID
	tokens map[tokenKey]domain.TokenRecord
	emails map[emailKey]domain.Email
	docs   []domain.TaxDocument
}

type tokenKey struct {
	userID   string
	provider domain.Provider
	email    string
}

// emailKey scopes provider message IDs per user; two accounts fetching the
// same mailbox keep separate rows.
type emailKey struct {
	userID string
	id     string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]domain.User),
		email:  make(map[string]string),
		tokens: make(map[tokenKey]domain.TokenRecord),
		emails: make(map[emailKey]domain.Email),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// UpsertToken replaces any previous credentials for the same mailbox.
func (m *MemoryStore) UpsertToken(t domain.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.UpdatedAt = time.Now().UTC()
	m.tokens[tokenKey{t.UserID, t.Provider, t.Email}] = t
	return nil
}

func (m *MemoryStore) GetToken(userID string, provider domain.Provider, email string) (domain.TokenRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[tokenKey{userID, provider, email}]
	return t, ok, nil
}

func (m *MemoryStore) SaveEmails(userID string, emails []domain.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range emails {
		key := emailKey{userID, e.ID}
		if _, exists := m.emails[key]; exists {
			continue
		}
		e.UserID = userID
		m.emails[key] = e
	}
	return nil
}

func (m *MemoryStore) ListEmails(userID string) ([]domain.Email, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Email, 0)
	for key, e := range m.emails {
		if key.userID == userID {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.After(res[j].Date) })
	return res, nil
}

func (m *MemoryStore) UpdateEmail(userID, emailID string, read, starred *bool) (domain.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := emailKey{userID, emailID}
	e, ok := m.emails[key]
	if !ok {
		return domain.Email{}, ErrEmailNotFound
	}
	if read != nil {
		e.Read = *read
	}
	if starred != nil {
		e.Starred = *starred
	}
	m.emails[key] = e
	return e, nil
}

func (m *MemoryStore) MarkTaxDocument(userID, emailID, documentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := emailKey{userID, emailID}
	e, ok := m.emails[key]
	if !ok {
		return ErrEmailNotFound
	}
	e.HasTaxDocument = true
	e.DocumentType = documentType
	m.emails[key] = e
	return nil
}

func (m *MemoryStore) DeleteEmails(userID string, emailIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range emailIDs {
		delete(m.emails, emailKey{userID, id})
	}
	return nil
}

func (m *MemoryStore) SaveTaxDocument(doc domain.TaxDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	return nil
}

func (m *MemoryStore) GetTaxDocument(userID, documentID string) (domain.TaxDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs {
		if d.UserID == userID && d.ID == documentID {
			return d, nil
		}
	}
	return domain.TaxDocument{}, ErrDocumentNotFound
}

func (m *MemoryStore) DeleteTaxDocument(userID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.docs {
		if d.UserID == userID && d.ID == documentID {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return ErrDocumentNotFound
}

func (m *MemoryStore) ListTaxDocuments(userID string) ([]domain.TaxDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.TaxDocument, 0)
	for _, d := range m.docs {
		if d.UserID == userID {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
