package sqlite

import (
	portsrepo "github.com/SscSPs/ledger_balances/internal/core/ports/repositories"
)

func NewRepositoryProvider(store *Store) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		LedgerRepo: store,
	}
}
