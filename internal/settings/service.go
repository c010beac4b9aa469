package settings

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"github.com/questhold/questhold/pkg/errors"
	"github.com/questhold/questhold/pkg/interfaces"
)

const entryCacheTTL = time.Minute

// Validator checks a decoded value before it is stored.
type Validator func(value interface{}) error

// Service resolves runtime settings: a stored override wins over the static
// configuration default, which wins over the key's built-in default.
type Service struct {
	store    Store
	defaults Defaults
	eventBus interfaces.EventBus
	cache    interfaces.Cache
	logger   interfaces.Logger

	mu         sync.RWMutex
	validators map[string][]Validator
}

// NewService creates a new settings service
func NewService(
	store Store,
	defaults Defaults,
	eventBus interfaces.EventBus,
	cache interfaces.Cache,
	logger interfaces.Logger,
) *Service {
	s := &Service{
		store:      store,
		defaults:   defaults,
		eventBus:   eventBus,
		cache:      cache,
		logger:     logger,
		validators: make(map[string][]Validator),
	}

	RegisterValidator(s, ScanTitleExtractionRegex, func(expr string) error {
		if _, err := regexp.Compile(expr); err != nil {
			return errors.BadRequest("invalid title extraction regex: %v", err)
		}
		return nil
	})
	RegisterValidator(s, ScanGameFileExtensions, func(extensions []string) error {
		if len(extensions) == 0 {
			return errors.BadRequest("at least one game file extension is required")
		}
		return nil
	})
	return s
}

// RegisterValidator adds a check run by Set for key.
func RegisterValidator[T any](s *Service, key Key[T], fn func(T) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validators[key.Name] = append(s.validators[key.Name], func(value interface{}) error {
		typed, ok := value.(T)
		if !ok {
			return errors.BadRequest("setting %s has type %T", key.Name, value)
		}
		return fn(typed)
	})
}

// Default returns the value of key when no override is stored.
func Default[T any](s *Service, key Key[T]) T {
	if v, ok := s.defaults[key.Name]; ok {
		if typed, ok := v.(T); ok {
			return typed
		}
	}
	return key.Default
}

// Get returns the effective value of key. On a storage or decode error the
// default is returned alongside the error.
func Get[T any](ctx context.Context, s *Service, key Key[T]) (T, error) {
	def := Default(s, key)

	raw, found, err := s.raw(ctx, key.Name)
	if err != nil || !found {
		return def, err
	}

	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		s.logger.Warn("Ignoring undecodable setting",
			interfaces.String("key", key.Name),
			interfaces.Error(err))
		return def, errors.Wrap(errors.ErrorTypeInternal, "setting "+key.Name+" is not valid", err)
	}
	return value, nil
}

// Set validates, stores and announces a new value for key.
func Set[T any](ctx context.Context, s *Service, key Key[T], value T) error {
	if err := s.validate(key.Name, value); err != nil {
		s.logger.Debug("Rejected setting",
			interfaces.String("key", key.Name),
			interfaces.Any("value", value),
			interfaces.Error(err))
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeBadRequest, "setting "+key.Name+" cannot be encoded", err)
	}

	entry := &ConfigEntry{Key: key.Name, Value: string(encoded), UpdatedAt: time.Now().UTC()}
	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return err
	}
	s.cache.Delete(ctx, cacheKey(key.Name))

	s.eventBus.PublishAsync(ctx, NewConfigUpdatedEvent(key.Name, value, false))
	s.logger.Info("Setting updated",
		interfaces.String("key", key.Name),
		interfaces.String("value", entry.Value))
	return nil
}

// Reset drops the stored override of the named setting.
func (s *Service) Reset(ctx context.Context, name string) error {
	if !IsKnown(name) {
		return errors.NotFound("unknown setting %s", name)
	}

	removed, err := s.store.DeleteEntry(ctx, name)
	if err != nil {
		return err
	}
	s.cache.Delete(ctx, cacheKey(name))
	if !removed {
		return nil
	}

	s.eventBus.PublishAsync(ctx, NewConfigUpdatedEvent(name, s.defaults[name], true))
	s.logger.Info("Setting reset", interfaces.String("key", name))
	return nil
}

// Overrides lists the stored overrides.
func (s *Service) Overrides(ctx context.Context) ([]*ConfigEntry, error) {
	return s.store.ListEntries(ctx)
}

func (s *Service) validate(name string, value interface{}) error {
	s.mu.RLock()
	validators := s.validators[name]
	s.mu.RUnlock()

	for _, validate := range validators {
		if err := validate(value); err != nil {
			return err
		}
	}
	return nil
}

// raw returns the stored JSON for name, reading through the cache.
func (s *Service) raw(ctx context.Context, name string) (string, bool, error) {
	if cached, ok := s.cache.Get(ctx, cacheKey(name)); ok {
		if value, ok := cached.(*string); ok {
			if value == nil {
				return "", false, nil
			}
			return *value, true, nil
		}
	}

	entry, err := s.store.GetEntry(ctx, name)
	if err != nil {
		if errors.IsNotFound(err) {
			s.cache.Set(ctx, cacheKey(name), (*string)(nil), entryCacheTTL)
			return "", false, nil
		}
		return "", false, err
	}

	s.cache.Set(ctx, cacheKey(name), &entry.Value, entryCacheTTL)
	return entry.Value, true, nil
}

func cacheKey(name string) string {
	return "setting:" + name
}
