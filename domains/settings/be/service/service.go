package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domainrepo "github.com/marmoreal/stonecms/domains/settings/be/repo"
	"github.com/marmoreal/stonecms/platform/go/cache"
	"github.com/marmoreal/stonecms/platform/go/metrics"
	"github.com/marmoreal/stonecms/platform/go/persistence"
	"github.com/marmoreal/stonecms/platform/go/requesttrace"
)

const (
	cachePrefix = "settings"
	cacheKey    = "site"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Settings is the site-wide configuration document.
type Settings struct {
	Document  json.RawMessage
	UpdatedBy string
	UpdatedAt time.Time
}

// Service exposes the settings operations.
type Service interface {
	Get(ctx context.Context, audit requesttrace.AuditInfo) (Settings, error)
	Update(ctx context.Context, audit requesttrace.AuditInfo, document json.RawMessage) (Settings, error)
}

// Config carries the seed document and optional collaborators.
type Config struct {
	// Defaults is stored and returned when no settings exist yet.
	Defaults json.RawMessage
	Cache    cache.Cache
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type service struct {
	repo     domainrepo.Repository
	defaults json.RawMessage
	cache    *cache.Typed[persistence.SettingsDocument]
	logger   *zap.Logger
}

// New builds a settings Service backed by the provided repository.
func New(repo domainrepo.Repository, cfg Config) Service {
	if repo == nil {
		panic("settings repository is required")
	}
	if len(cfg.Defaults) == 0 {
		panic("default settings are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var observe func(bool)
	if cfg.Metrics != nil {
		observe = func(hit bool) { cfg.Metrics.CacheResult("settings", hit) }
	}
	return &service{
		repo:     repo,
		defaults: cfg.Defaults,
		cache:    cache.NewTyped[persistence.SettingsDocument](cfg.Cache, cachePrefix, observe),
		logger:   logger,
	}
}

// Get returns the stored settings. On first use the defaults are persisted and returned.
func (s *service) Get(ctx context.Context, audit requesttrace.AuditInfo) (Settings, error) { //nolint:revive
	cached, ok, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		s.logger.Warn("settings cache read failed", zap.Error(err))
	}
	if ok {
		return mapSettings(cached), nil
	}

	doc, err := s.repo.Get(ctx)
	if errors.Is(err, persistence.ErrSettingsNotFound) {
		s.logger.Info("seeding default site settings")
		doc, err = s.repo.InsertIfAbsent(ctx, s.defaults, string(requesttrace.ActorKindSystem))
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	if err := s.cache.Set(ctx, cacheKey, doc); err != nil {
		s.logger.Warn("settings cache write failed", zap.Error(err))
	}
	return mapSettings(doc), nil
}

// Update replaces the whole document. UpdatedBy records the admin's email when known.
func (s *service) Update(ctx context.Context, audit requesttrace.AuditInfo, document json.RawMessage) (Settings, error) {
	trimmed := bytes.TrimSpace(document)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Settings{}, &ValidationError{Fields: FieldErrors{"document": []string{"settings must be a JSON object"}}}
	}

	updatedBy := audit.ActorEmail
	if updatedBy == "" {
		updatedBy = audit.Actor()
	}

	doc, err := s.repo.Put(ctx, json.RawMessage(trimmed), updatedBy)
	if err != nil {
		if errors.Is(err, persistence.ErrInvalidDocument) {
			return Settings{}, &ValidationError{Fields: FieldErrors{"document": []string{err.Error()}}}
		}
		return Settings{}, err
	}

	if err := s.cache.Invalidate(ctx, cacheKey); err != nil {
		s.logger.Warn("settings cache invalidation failed", zap.Error(err))
	}
	return mapSettings(doc), nil
}

func mapSettings(doc persistence.SettingsDocument) Settings {
	return Settings{
		Document:  doc.Document,
		UpdatedBy: doc.UpdatedBy,
		UpdatedAt: doc.UpdatedAt,
	}
}
