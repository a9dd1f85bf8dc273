package shortener

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/rs/zerolog"
	"github.com/teris-io/shortid"
)

// codeGenAttempts bounds collision retries when auto-generating a short code.
const codeGenAttempts = 5

var (
	// ErrNamespaceNotFound is returned for unknown namespace names or ids.
	ErrNamespaceNotFound = errors.New("namespace not found")
	// ErrLinkNotFound is returned for unknown short URLs.
	ErrLinkNotFound = errors.New("short url not found")
	// ErrLinkInactive is returned when resolving a deactivated short URL.
	ErrLinkInactive = errors.New("short url is not active")
	// ErrDuplicateShortCode rejects an explicit code already taken in the namespace.
	ErrDuplicateShortCode = errors.New("short code already exists in this namespace")
	// ErrDuplicateNamespace rejects a namespace name already in use.
	ErrDuplicateNamespace = errors.New("namespace name already exists")
	// ErrCodeGeneration is returned when generation keeps colliding.
	ErrCodeGeneration = errors.New("could not generate a unique short code")
	// ErrOriginalURLRequired rejects links without a destination.
	ErrOriginalURLRequired = errors.New("original url is required")
)

// Service manages namespaces and short URLs. Every mutation consults the
// permission evaluator; the redirect path is a plain lookup plus an atomic
// click-count bump.
type Service struct {
	namespaceRepo repository.NamespaceRepository
	shortURLRepo  repository.ShortURLRepository
	evaluator     *authz.Evaluator
	generator     *shortid.Shortid
	logger        zerolog.Logger
}

func NewService(
	namespaceRepo repository.NamespaceRepository,
	shortURLRepo repository.ShortURLRepository,
	evaluator *authz.Evaluator,
	logger zerolog.Logger,
) (*Service, error) {
	generator, err := shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		return nil, err
	}
	return &Service{
		namespaceRepo: namespaceRepo,
		shortURLRepo:  shortURLRepo,
		evaluator:     evaluator,
		generator:     generator,
		logger:        logger.With().Str("component", "shortener").Logger(),
	}, nil
}

// CreateNamespace provisions a globally unique namespace in the organization.
func (s *Service) CreateNamespace(actorID, organizationID, name, description string) (models.Namespace, error) {
	allowed, err := s.evaluator.Can(actorID, authz.OrganizationResource(organizationID), authz.CapabilityCreateNamespace)
	if err != nil {
		return models.Namespace{}, err
	}
	if !allowed {
		return models.Namespace{}, authz.ErrUnauthorized
	}

	ns, err := s.namespaceRepo.CreateNamespace(organizationID, strings.TrimSpace(name), description)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateNamespace) {
			return models.Namespace{}, ErrDuplicateNamespace
		}
		return models.Namespace{}, err
	}
	return ns, nil
}

// ListNamespaces returns the organization's namespaces to any member.
func (s *Service) ListNamespaces(actorID, organizationID string) ([]models.Namespace, error) {
	allowed, err := s.evaluator.Can(actorID, authz.OrganizationResource(organizationID), authz.CapabilityView)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, authz.ErrUnauthorized
	}
	return s.namespaceRepo.ListNamespacesByOrganization(organizationID)
}

// DeleteNamespace removes a namespace and, via cascade, its short URLs.
func (s *Service) DeleteNamespace(actorID, namespaceID string) error {
	allowed, err := s.evaluator.Can(actorID, authz.NamespaceResource(namespaceID), authz.CapabilityDelete)
	if err != nil {
		return err
	}
	if !allowed {
		return authz.ErrUnauthorized
	}

	if err := s.namespaceRepo.DeleteNamespace(namespaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNamespaceNotFound
		}
		return err
	}
	return nil
}

// CreateShortURL creates a link in the namespace. An empty short code always
// triggers generation, retried on collision a bounded number of times; an
// explicit code that collides is a conflict.
func (s *Service) CreateShortURL(actorID string, link models.ShortURL) (models.ShortURL, error) {
	if strings.TrimSpace(link.OriginalURL) == "" {
		return models.ShortURL{}, ErrOriginalURLRequired
	}

	allowed, err := s.evaluator.Can(actorID, authz.NamespaceResource(link.NamespaceID), authz.CapabilityCreate)
	if err != nil {
		return models.ShortURL{}, err
	}
	if !allowed {
		return models.ShortURL{}, authz.ErrUnauthorized
	}

	link.CreatedBy = actorID
	link.IsActive = true

	link.ShortCode = strings.TrimSpace(link.ShortCode)
	if link.ShortCode != "" {
		created, err := s.shortURLRepo.CreateShortURL(link)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateShortCode) {
				return models.ShortURL{}, ErrDuplicateShortCode
			}
			return models.ShortURL{}, err
		}
		return created, nil
	}

	for attempt := 0; attempt < codeGenAttempts; attempt++ {
		code, err := s.generator.Generate()
		if err != nil {
			return models.ShortURL{}, err
		}
		link.ShortCode = code

		created, err := s.shortURLRepo.CreateShortURL(link)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, repository.ErrDuplicateShortCode) {
			return models.ShortURL{}, err
		}
	}
	return models.ShortURL{}, ErrCodeGeneration
}

// ListShortURLs returns the namespace's links to any member.
func (s *Service) ListShortURLs(actorID, namespaceID string) ([]models.ShortURL, error) {
	allowed, err := s.evaluator.Can(actorID, authz.NamespaceResource(namespaceID), authz.CapabilityView)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, authz.ErrUnauthorized
	}
	return s.shortURLRepo.ListShortURLsByNamespace(namespaceID)
}

// UpdateShortURL edits a link. Editors may edit only links they created.
func (s *Service) UpdateShortURL(actorID string, link models.ShortURL) (models.ShortURL, error) {
	allowed, err := s.evaluator.Can(actorID, authz.ShortURLResource(link.ID), authz.CapabilityEdit)
	if err != nil {
		return models.ShortURL{}, err
	}
	if !allowed {
		return models.ShortURL{}, authz.ErrUnauthorized
	}

	updated, err := s.shortURLRepo.UpdateShortURL(link)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ShortURL{}, ErrLinkNotFound
		}
		return models.ShortURL{}, err
	}
	return updated, nil
}

// DeleteShortURL removes a link. Editors may delete only links they created.
func (s *Service) DeleteShortURL(actorID, linkID string) error {
	allowed, err := s.evaluator.Can(actorID, authz.ShortURLResource(linkID), authz.CapabilityDelete)
	if err != nil {
		return err
	}
	if !allowed {
		return authz.ErrUnauthorized
	}

	if err := s.shortURLRepo.DeleteShortURL(linkID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLinkNotFound
		}
		return err
	}
	return nil
}

// Resolve looks up an active link by namespace and code and counts the click.
func (s *Service) Resolve(namespaceName, shortCode string) (models.ShortURL, error) {
	link, err := s.shortURLRepo.GetShortURLByCode(namespaceName, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ShortURL{}, ErrLinkNotFound
		}
		return models.ShortURL{}, err
	}
	if !link.IsActive {
		return models.ShortURL{}, ErrLinkInactive
	}

	if err := s.shortURLRepo.IncrementClickCount(link.ID); err != nil {
		// The redirect still succeeds; losing a click is not worth a 500.
		s.logger.Warn().Err(err).Str("short_url_id", link.ID).Msg("failed to count click")
	}
	return link, nil
}
