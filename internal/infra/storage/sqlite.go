package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"crypto_swarm/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// batchSize bounds rows per INSERT when saving a tick.
const batchSize = 500

// Storage persists simulation output: run headers and committed agent states per tick.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path.
// An empty path resolves to the per-user config directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		var err error
		path, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	// Auto Migration
	if err := db.AutoMigrate(&domain.SimulationRun{}, &domain.AgentTick{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "CryptoSwarm", "data", "simulations.db"), nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Run Operations
// ======================================================================================

// CreateRun inserts a run header and fills in its ID.
func (s *Storage) CreateRun(run *domain.SimulationRun) error {
	return s.db.Create(run).Error
}

// FinishRun stores the number of committed ticks.
func (s *Storage) FinishRun(runID uint, ticks int64) error {
	return s.db.Model(&domain.SimulationRun{}).Where("id = ?", runID).Update("ticks", ticks).Error
}

// GetRun retrieves a run header by ID.
func (s *Storage) GetRun(runID uint) (*domain.SimulationRun, error) {
	var run domain.SimulationRun
	err := s.db.First(&run, runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &run, err
}

// ======================================================================================
// Tick Operations
// ======================================================================================

// SaveTick stores the committed state of every agent for one tick.
// profiles[i] and states[i] describe agent i.
func (s *Storage) SaveTick(runID uint, tick int64, profiles []domain.Profile, states []domain.AgentState) error {
	if len(profiles) != len(states) {
		return fmt.Errorf("save tick %d: %d profiles for %d states", tick, len(profiles), len(states))
	}
	if len(states) == 0 {
		return nil
	}
	rows := make([]domain.AgentTick, len(states))
	for i, st := range states {
		rows[i] = domain.AgentTick{
			RunID:      runID,
			Tick:       tick,
			AgentID:    i,
			Profile:    profiles[i].String(),
			Position:   st.Position.String(),
			Liquidated: st.Liquidated,
		}
	}
	return s.db.CreateInBatches(rows, batchSize).Error
}

// TickStates returns the stored rows of one tick ordered by agent id.
func (s *Storage) TickStates(runID uint, tick int64) ([]domain.AgentTick, error) {
	var rows []domain.AgentTick
	err := s.db.Where("run_id = ? AND tick = ?", runID, tick).Order("agent_id").Find(&rows).Error
	return rows, err
}

// AgentHistory returns one agent's rows across all ticks of a run.
func (s *Storage) AgentHistory(runID uint, agentID int) ([]domain.AgentTick, error) {
	var rows []domain.AgentTick
	err := s.db.Where("run_id = ? AND agent_id = ?", runID, agentID).Order("tick").Find(&rows).Error
	return rows, err
}

// CountLiquidated returns how many agents were liquidated at the given tick.
func (s *Storage) CountLiquidated(runID uint, tick int64) (int64, error) {
	var n int64
	err := s.db.Model(&domain.AgentTick{}).
		Where("run_id = ? AND tick = ? AND liquidated = ?", runID, tick, true).
		Count(&n).Error
	return n, err
}
