// Package doctor runs the gateway preflight checks.
package doctor

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/storage"
)

// ServiceConfig is the configuration for the doctor service.
type ServiceConfig struct {
	// ToolBinary is the wrapped tool executable, searched in PATH when not absolute.
	ToolBinary string
	Catalog    storage.ProfileRepository
	// Dirs are the directories the gateway writes to, keyed by check ID.
	Dirs    map[string]string
	Timeout time.Duration
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Catalog == nil {
		return fmt.Errorf("catalog is required")
	}
	if c.ToolBinary == "" {
		c.ToolBinary = conventions.DefaultToolBinary
	}
	if c.Timeout <= 0 {
		c.Timeout = conventions.CatalogQueryTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Doctor"})
	return nil
}

// Service runs the preflight checks.
type Service struct {
	toolBinary string
	catalog    storage.ProfileRepository
	dirs       map[string]string
	timeout    time.Duration
	logger     log.Logger
}

// NewService creates a new doctor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		toolBinary: cfg.ToolBinary,
		catalog:    cfg.Catalog,
		dirs:       cfg.Dirs,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}, nil
}

// Check runs every check. Directory checks are returned sorted by ID after
// the tool and catalog checks.
func (s *Service) Check(ctx context.Context) []model.CheckResult {
	results := []model.CheckResult{
		s.checkToolBinary(),
		s.checkCatalog(ctx),
	}

	for _, id := range slices.Sorted(maps.Keys(s.dirs)) {
		results = append(results, checkWritableDir(id, s.dirs[id]))
	}

	ok, warnings, errors := model.CountByStatus(results)
	s.logger.Debugf("Preflight checks finished: %d ok, %d warnings, %d errors", ok, warnings, errors)

	return results
}

func (s *Service) checkToolBinary() model.CheckResult {
	path, err := exec.LookPath(s.toolBinary)
	if err != nil {
		return model.CheckResult{
			ID:      "tool_binary",
			Message: fmt.Sprintf("%s not found, tasks will fail to start", s.toolBinary),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      "tool_binary",
		Message: fmt.Sprintf("%s found at %s", s.toolBinary, path),
		Status:  model.CheckStatusOK,
	}
}

// checkCatalog never fails, the gateway serves the fallback profiles without a catalog.
func (s *Service) checkCatalog(ctx context.Context) model.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.catalog.ListProfileRows(ctx)
	if err != nil {
		return model.CheckResult{
			ID:      "catalog",
			Message: fmt.Sprintf("Catalog unavailable, fallback profiles will be served: %v", err),
			Status:  model.CheckStatusWarning,
		}
	}

	if len(rows) == 0 {
		return model.CheckResult{
			ID:      "catalog",
			Message: "Catalog is empty, fallback profiles will be served",
			Status:  model.CheckStatusWarning,
		}
	}

	return model.CheckResult{
		ID:      "catalog",
		Message: fmt.Sprintf("Catalog returned %d profile(s)", len(rows)),
		Status:  model.CheckStatusOK,
	}
}

func checkWritableDir(id, dir string) model.CheckResult {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.CheckResult{
			ID:      id,
			Message: fmt.Sprintf("Cannot create %s: %v", dir, err),
			Status:  model.CheckStatusError,
		}
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return model.CheckResult{
			ID:      id,
			Message: fmt.Sprintf("No write permission to %s: %v", dir, err),
			Status:  model.CheckStatusError,
		}
	}
	f.Close()
	_ = os.Remove(f.Name())

	return model.CheckResult{
		ID:      id,
		Message: fmt.Sprintf("%s is writable", dir),
		Status:  model.CheckStatusOK,
	}
}
