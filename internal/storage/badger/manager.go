package badger

import (
	"errors"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
)

// gcInterval is how often the value log garbage collector runs. Report
// payloads churn on every scheduled audit, so the value log needs
// periodic reclamation in long-running processes.
const gcInterval = 10 * time.Minute

// Manager owns the Badger connection and the typed storage facades.
type Manager struct {
	db     *BadgerDB
	job    interfaces.JobStorage
	report interfaces.ReportStorage
	logger arbor.ILogger
	gcStop chan struct{}
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.Config) (*Manager, error) {
	db, err := NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		job:    NewJobStorage(db, logger),
		report: NewReportStorage(db, logger, config.Report.CompressionThreshold),
		logger: logger,
		gcStop: make(chan struct{}),
	}
	go manager.gcLoop()

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// ReportStorage returns the Report storage interface
func (m *Manager) ReportStorage() interfaces.ReportStorage {
	return m.report
}

// gcLoop runs the Badger value log GC until Close.
func (m *Manager) gcLoop() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.gcStop:
			return
		case <-ticker.C:
			// Repeat until a pass reclaims nothing.
			for {
				err := m.db.Store().Badger().RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, badgerdb.ErrNoRewrite) {
						m.logger.Warn().Err(err).Msg("Value log GC failed")
					}
					break
				}
				m.logger.Debug().Msg("Value log GC reclaimed space")
			}
		}
	}
}

// Close stops the GC loop and closes the database connection
func (m *Manager) Close() error {
	close(m.gcStop)
	return m.db.Close()
}
