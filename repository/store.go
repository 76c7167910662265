package repository

import (
	"courtside/database"
	"courtside/domain/interfaces"
)

// Store bundles the Postgres repositories behind interfaces.Store
type Store struct {
	users    *UserRepository
	wallets  *WalletRepository
	sessions *SessionRepository
	rosters  *RosterRepository
	archives *ArchiveRepository
	settings *SettingsRepository
}

// NewStore creates the Postgres store over one connection pool
func NewStore(db *database.DB) *Store {
	return &Store{
		users:    NewUserRepository(db),
		wallets:  NewWalletRepository(db),
		sessions: NewSessionRepository(db),
		rosters:  NewRosterRepository(db),
		archives: NewArchiveRepository(db),
		settings: NewSettingsRepository(db),
	}
}

func (s *Store) UserRepository() interfaces.UserRepository         { return s.users }
func (s *Store) WalletRepository() interfaces.WalletRepository     { return s.wallets }
func (s *Store) SessionRepository() interfaces.SessionRepository   { return s.sessions }
func (s *Store) RosterRepository() interfaces.RosterRepository     { return s.rosters }
func (s *Store) ArchiveRepository() interfaces.ArchiveRepository   { return s.archives }
func (s *Store) SettingsRepository() interfaces.SettingsRepository { return s.settings }
