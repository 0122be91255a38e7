package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"shrimp/internal/config"
	"shrimp/internal/domain"
	"shrimp/internal/repository"
	"shrimp/pkg/random"
)

const (
	minSlugLength     = 7
	defaultMaxRetries = 5
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// slugs that would shadow fixed routes
var reservedSlugs = map[string]struct{}{
	"api":     {},
	"health":  {},
	"ready":   {},
	"swagger": {},
}

// SlugStore is the part of the link store the allocator needs.
type SlugStore interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateLink(ctx context.Context, link *domain.Link) error
}

// SlugAllocator assigns a unique slug to a new link and inserts it.
type SlugAllocator struct {
	store      SlugStore
	length     int
	maxRetries int
	generate   func(length int) (string, error)
	log        *zap.Logger
}

func NewSlugAllocator(store SlugStore, cfg *config.Shortener, log *zap.Logger) *SlugAllocator {
	length := cfg.SlugLength
	if length < minSlugLength {
		length = minSlugLength
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &SlugAllocator{
		store:      store,
		length:     length,
		maxRetries: retries,
		generate:   random.NewSlug,
		log:        log,
	}
}

// ValidateSlug checks a caller-chosen slug.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return invalid("slug", "must be 3-64 characters of letters, digits, '-' or '_'")
	}
	if _, ok := reservedSlugs[strings.ToLower(slug)]; ok {
		return invalid("slug", "%q is reserved", slug)
	}
	return nil
}

// Allocate sets link.Slug and inserts the link. A requested slug is tried
// once and fails with ErrConflict if taken. Otherwise slugs are generated
// until one inserts cleanly or the retry budget runs out.
func (a *SlugAllocator) Allocate(ctx context.Context, link *domain.Link, requested string) error {
	if requested != "" {
		if err := ValidateSlug(requested); err != nil {
			return err
		}

		link.Slug = requested
		err := a.store.CreateLink(ctx, link)
		if errors.Is(err, repository.ErrSlugExists) {
			return fmt.Errorf("%w: slug %q is already in use", ErrConflict, requested)
		}
		if err != nil {
			return fmt.Errorf("failed to save link: %w", err)
		}
		return nil
	}

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		slug, err := a.generate(a.length)
		if err != nil {
			return fmt.Errorf("failed to generate slug: %w", err)
		}

		exists, err := a.store.SlugExists(ctx, slug)
		if err != nil {
			return fmt.Errorf("failed to check slug existence: %w", err)
		}
		if exists {
			a.log.Debug("generated slug already taken", zap.String("slug", slug), zap.Int("attempt", attempt))
			continue
		}

		link.Slug = slug
		err = a.store.CreateLink(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSlugExists) {
			return fmt.Errorf("failed to save link: %w", err)
		}
		// lost a race with a concurrent insert
		a.log.Debug("generated slug collided on insert", zap.String("slug", slug), zap.Int("attempt", attempt))
	}

	link.Slug = ""
	a.log.Error("slug allocation exhausted", zap.Int("attempts", a.maxRetries))
	return ErrAllocationExhausted
}
