package dbmanager

import (
	"github.com/maloquacious/navstore/internal/audit"
	"github.com/maloquacious/navstore/internal/simulator"
	"github.com/maloquacious/navstore/internal/store"
	"github.com/pkg/errors"
)

// AuditCompatibility checks every store file before the bulk roles are
// opened. It fails with StartupAbort if incompatible stores exist and the
// user declines erasing them, or if erasing fails.
func (m *Manager) AuditCompatibility() (audit.ScanResult, error) {
	if m.state != Ready {
		return audit.ScanResult{}, newError(Retryable, "audit", "", ErrNotReady)
	}
	if open := m.openBulkRoles(); len(open) > 0 {
		return audit.ScanResult{}, newError(Retryable, "audit", m.handles[open[0]].Path(),
			errors.New("bulk stores must be closed before auditing"))
	}

	placeholder := m.fileName(simulator.None)
	if err := m.auditor.EnsurePlaceholder(placeholder); err != nil {
		return audit.ScanResult{}, newError(StartupAbort, "audit", placeholder, err)
	}

	var confirm audit.ConfirmFunc
	if m.cfg.Confirmer != nil {
		confirm = m.cfg.Confirmer.ConfirmErase
	}
	result, err := m.auditor.Run(simulator.All, m.fileName, confirm)
	m.registry.RefreshDatabaseFlags(m.fileName)
	if err != nil {
		return result, newError(StartupAbort, "audit", "", err)
	}
	if len(result.Incompatible) > 0 {
		m.log.Info("erased %d incompatible stores", len(result.Incompatible))
	}
	return result, nil
}

func (m *Manager) openBulkRoles() []store.Role {
	var roles []store.Role
	for _, role := range store.BulkRoles {
		if m.Handle(role) != nil {
			roles = append(roles, role)
		}
	}
	return roles
}
