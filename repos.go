package trawl

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type DatabaseLocation string

const (
	NO_DATABASE       DatabaseLocation = ""
	INMEMORY_DATABASE DatabaseLocation = ":memory:"
)

type Repository interface {
	WithTransaction(fn func(*gorm.DB) error) error
	connect() (*gorm.DB, error)
}

type repository struct {
	db *gorm.DB

	location string
	config   *gorm.Config
	models   []any
}

func newRepository(location string) *repository {
	return &repository{
		location: location,
		config: &gorm.Config{
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
		models: []any{&Target{}, &Service{}, &Finding{}, &ScanRun{}},
	}
}

// do whatever within a separate transaction
func (r *repository) WithTransaction(fn func(conn *gorm.DB) error) error {
	if _, err := r.connect(); err != nil {
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

func (r *repository) connect() (*gorm.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := gorm.Open(sqlite.Open(r.location), r.config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database connection")
	}

	// every pooled connection to :memory: is a distinct database;
	// pin the pool to one so the schema survives
	if r.location == string(INMEMORY_DATABASE) {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	db = db.Exec("PRAGMA foreign_keys = ON")
	if err := db.AutoMigrate(r.models...); err != nil {
		return nil, err
	}
	r.db = db

	return db, nil
}

// Targets and their services. Targets are read repeatedly while
// a run fans out over detectors, so reads go through a small
// expiring cache.
type targetRepo struct {
	Repository
	cache *expirable.LRU[uint, *Target]
}

func newTargetRepo(base Repository) *targetRepo {
	return &targetRepo{
		Repository: base,
		cache:      expirable.NewLRU[uint, *Target](128, nil, 5*time.Minute),
	}
}

func (r *targetRepo) AddTargets(targets ...*Target) error {
	if len(targets) == 0 {
		return nil
	}
	return r.WithTransaction(func(conn *gorm.DB) error {
		if err := conn.Create(targets).Error; err != nil {
			return errors.Wrap(err, "failed to create targets")
		}
		return nil
	})
}

func (r *targetRepo) GetTarget(id uint) (*Target, error) {
	if target, ok := r.cache.Get(id); ok {
		return target, nil
	}

	var target Target
	err := r.WithTransaction(func(conn *gorm.DB) error {
		q := conn.Preload("Services").First(&target, id)
		if err := q.Error; err != nil {
			return errors.Wrap(err, "failed to find target")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.cache.Add(id, &target)
	return &target, nil
}

type findingRepo struct {
	Repository
}

func newFindingRepo(base Repository) *findingRepo {
	return &findingRepo{Repository: base}
}

func (r *findingRepo) AddFindings(findings ...*Finding) error {
	if len(findings) == 0 {
		return nil
	}
	return r.WithTransaction(func(conn *gorm.DB) error {
		if err := conn.Create(findings).Error; err != nil {
			return errors.Wrap(err, "failed to create findings")
		}
		return nil
	})
}

type FindingFilters struct {
	RunID    string
	VulnID   string
	Severity Severity
}

func (r *findingRepo) GetFindings(f FindingFilters) ([]*Finding, error) {
	var findings []*Finding
	err := r.WithTransaction(func(conn *gorm.DB) error {
		q := conn.Model(&Finding{})
		if f.RunID != "" {
			q = q.Where("run_id = ?", f.RunID)
		}
		if f.VulnID != "" {
			q = q.Where("vuln_id = ?", f.VulnID)
		}
		if f.Severity != "" {
			q = q.Where("severity = ?", f.Severity)
		}
		if err := q.Find(&findings).Error; err != nil {
			return errors.Wrap(err, "failed to find findings")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

type runRepo struct {
	Repository
}

func newRunRepo(base Repository) *runRepo {
	return &runRepo{Repository: base}
}

func (r *runRepo) AddRun(run *ScanRun) error {
	return r.WithTransaction(func(conn *gorm.DB) error {
		if err := conn.Create(run).Error; err != nil {
			return errors.Wrap(err, "failed to create scan run")
		}
		return nil
	})
}

func (r *runRepo) FinishRun(run *ScanRun) error {
	return r.WithTransaction(func(conn *gorm.DB) error {
		if err := conn.Save(run).Error; err != nil {
			return errors.Wrap(err, "failed to update scan run")
		}
		return nil
	})
}

// The registry of repositories sharing one database handle.
type repositoryRegistry struct {
	base *repository

	targets  *targetRepo
	findings *findingRepo
	runs     *runRepo
}

func NewRepositories(location DatabaseLocation) *repositoryRegistry {
	base := newRepository(string(location))
	return &repositoryRegistry{
		base:     base,
		targets:  newTargetRepo(base),
		findings: newFindingRepo(base),
		runs:     newRunRepo(base),
	}
}

func (r *repositoryRegistry) Targets() *targetRepo   { return r.targets }
func (r *repositoryRegistry) Findings() *findingRepo { return r.findings }
func (r *repositoryRegistry) Runs() *runRepo         { return r.runs }
