package memory

import (
	"sync"

	"courtside/domain/entities"
	"courtside/domain/interfaces"
)

// Store keeps every document in process memory. One lock guards all documents, so
// each repository call is an atomic read-modify-write. Values are copied on the way in
// and out so callers never share state with the store.
type Store struct {
	mu sync.RWMutex

	users        map[string]*entities.User
	transactions map[string]*entities.Transaction
	txByUser     map[string][]string // Transaction ids in append order
	sessions     map[string]*entities.Session
	rosters      map[string][]*entities.Registrant
	archives     map[string]*entities.SessionArchive
	archiveOrder []string

	currentSessionID string
	maintenance      bool
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		users:        make(map[string]*entities.User),
		transactions: make(map[string]*entities.Transaction),
		txByUser:     make(map[string][]string),
		sessions:     make(map[string]*entities.Session),
		rosters:      make(map[string][]*entities.Registrant),
		archives:     make(map[string]*entities.SessionArchive),
	}
}

func (s *Store) UserRepository() interfaces.UserRepository {
	return &UserRepository{store: s}
}

func (s *Store) WalletRepository() interfaces.WalletRepository {
	return &WalletRepository{store: s}
}

func (s *Store) SessionRepository() interfaces.SessionRepository {
	return &SessionRepository{store: s}
}

func (s *Store) RosterRepository() interfaces.RosterRepository {
	return &RosterRepository{store: s}
}

func (s *Store) ArchiveRepository() interfaces.ArchiveRepository {
	return &ArchiveRepository{store: s}
}

func (s *Store) SettingsRepository() interfaces.SettingsRepository {
	return &SettingsRepository{store: s}
}

func copyUser(u *entities.User) *entities.User {
	cp := *u
	return &cp
}

func copyTransaction(tx *entities.Transaction) *entities.Transaction {
	cp := *tx
	if tx.SessionID != nil {
		id := *tx.SessionID
		cp.SessionID = &id
	}
	if tx.Metadata != nil {
		cp.Metadata = make(map[string]any, len(tx.Metadata))
		for k, v := range tx.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

func copySession(session *entities.Session) *entities.Session {
	cp := *session
	if session.PublishedAt != nil {
		t := *session.PublishedAt
		cp.PublishedAt = &t
	}
	if session.ClosedAt != nil {
		t := *session.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}

func copyRegistrants(regs []*entities.Registrant) []*entities.Registrant {
	out := make([]*entities.Registrant, len(regs))
	for i, reg := range regs {
		cp := *reg
		out[i] = &cp
	}
	return out
}

func copyArchive(a *entities.SessionArchive) *entities.SessionArchive {
	cp := *a
	cp.Registrants = copyRegistrants(a.Registrants)
	return &cp
}
