package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"invoicelens/internal/domain"
	"invoicelens/internal/port"
)

const (
	apiKeyScheme      = "il"
	apiKeyPrefixBytes = 4
	apiKeySecretBytes = 24
	apiKeyBcryptCost  = 12
)

// CreatedAPIKey is a freshly minted key. Token is shown once and never stored.
type CreatedAPIKey struct {
	Key   *domain.APIKey
	Token string
}

// APIKeyService defines the API key management contract.
type APIKeyService interface {
	Create(ctx context.Context, name string) (*CreatedAPIKey, error)
	// Authenticate resolves a presented token to a key. Static keys from config resolve
	// to a synthetic key named "static".
	Authenticate(ctx context.Context, token string) (*domain.APIKey, error)
	List(ctx context.Context) ([]domain.APIKey, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}

type apiKeyService struct {
	repo       port.APIKeyRepository
	staticKeys []string
	now        func() time.Time
}

// NewAPIKeyService creates a new APIKeyService implementation. repo may be nil when only
// static keys are used.
func NewAPIKeyService(repo port.APIKeyRepository, staticKeys []string) APIKeyService {
	return &apiKeyService{repo: repo, staticKeys: staticKeys, now: time.Now}
}

func (s *apiKeyService) Create(ctx context.Context, name string) (*CreatedAPIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("api key name is required")
	}
	if s.repo == nil {
		return nil, errors.New("api key store is not configured")
	}

	prefix, err := randomHex(apiKeyPrefixBytes)
	if err != nil {
		return nil, err
	}
	secret, err := randomHex(apiKeySecretBytes)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), apiKeyBcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing api key: %w", err)
	}

	key := &domain.APIKey{
		ID:      uuid.New(),
		Name:    name,
		Prefix:  prefix,
		KeyHash: string(hash),
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, err
	}
	log.Printf("apiKeyService.Create: created key %s (%s)", key.Prefix, key.Name)

	return &CreatedAPIKey{
		Key:   key,
		Token: fmt.Sprintf("%s_%s_%s", apiKeyScheme, prefix, secret),
	}, nil
}

func (s *apiKeyService) Authenticate(ctx context.Context, token string) (*domain.APIKey, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	for i, static := range s.staticKeys {
		if subtle.ConstantTimeCompare([]byte(static), []byte(token)) == 1 {
			return &domain.APIKey{Name: "static", Prefix: fmt.Sprintf("static-%d", i)}, nil
		}
	}
	if s.repo == nil {
		return nil, domain.ErrUnauthorized
	}

	prefix, secret, ok := parseAPIKey(token)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	key, err := s.repo.GetByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(secret)) != nil {
		return nil, domain.ErrUnauthorized
	}
	if key.RevokedAt != nil {
		return nil, domain.ErrAPIKeyRevoked
	}

	now := s.now().UTC()
	if err := s.repo.TouchLastUsed(ctx, key.ID, now); err != nil {
		log.Printf("apiKeyService.Authenticate: failed to touch key %s: %v", key.Prefix, err)
	}
	key.LastUsedAt = &now
	return key, nil
}

func (s *apiKeyService) List(ctx context.Context) ([]domain.APIKey, error) {
	if s.repo == nil {
		return []domain.APIKey{}, nil
	}
	return s.repo.List(ctx)
}

func (s *apiKeyService) Revoke(ctx context.Context, id uuid.UUID) error {
	if s.repo == nil {
		return domain.ErrNotFound
	}
	if err := s.repo.Revoke(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	log.Printf("apiKeyService.Revoke: revoked key %s", id)
	return nil
}

// parseAPIKey splits il_<prefix>_<secret>.
func parseAPIKey(token string) (prefix, secret string, ok bool) {
	parts := strings.Split(token, "_")
	if len(parts) != 3 || parts[0] != apiKeyScheme || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
