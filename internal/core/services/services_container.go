package services

import (
	portsrepo "github.com/SscSPs/ledger_balances/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider) *portssvc.ServiceContainer {
	return &portssvc.ServiceContainer{
		Ledger: NewLedgerService(
			repos.LedgerRepo,
			WithRecomputeRetries(cfg.RecomputeMaxRetries, cfg.RecomputeRetryBackoff),
		),
		Balance:   NewBalanceService(repos.LedgerRepo),
		Reporting: NewReportingService(repos.LedgerRepo),
	}
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.LedgerSvcFacade    = (*ledgerService)(nil)
	_ portssvc.BalanceSvcFacade   = (*balanceService)(nil)
	_ portssvc.ReportingSvcFacade = (*reportingService)(nil)
)
