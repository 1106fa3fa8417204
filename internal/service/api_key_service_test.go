package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"invoicelens/internal/domain"
	"invoicelens/internal/service"
	"invoicelens/mocks"
)

func TestAPIKeyService_CreateAndAuthenticate(t *testing.T) {
	repo := new(mocks.MockAPIKeyRepo)
	svc := service.NewAPIKeyService(repo, nil)
	service.SetAPIKeyServiceClock(svc, func() time.Time { return fixedNow })

	var stored *domain.APIKey
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.APIKey")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.APIKey) }).
		Return(nil)

	created, err := svc.Create(context.Background(), "  ci pipeline ")
	require.NoError(t, err)
	assert.Equal(t, "ci pipeline", created.Key.Name)
	parts := strings.Split(created.Token, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "il", parts[0])
	assert.Equal(t, created.Key.Prefix, parts[1])
	assert.NotContains(t, stored.KeyHash, parts[2])
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.KeyHash), []byte(parts[2])))

	repo.On("GetByPrefix", mock.Anything, created.Key.Prefix).Return(stored, nil)
	repo.On("TouchLastUsed", mock.Anything, stored.ID, fixedNow).Return(nil)

	key, err := svc.Authenticate(context.Background(), created.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, key.ID)
	require.NotNil(t, key.LastUsedAt)
	repo.AssertExpectations(t)
}

func TestAPIKeyService_Create_RequiresName(t *testing.T) {
	svc := service.NewAPIKeyService(new(mocks.MockAPIKeyRepo), nil)
	_, err := svc.Create(context.Background(), " ")
	assert.Error(t, err)
}

func TestAPIKeyService_Authenticate_StaticKey(t *testing.T) {
	svc := service.NewAPIKeyService(nil, []string{"first", "second"})

	key, err := svc.Authenticate(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, "static", key.Name)
	assert.Equal(t, "static-1", key.Prefix)

	_, err = svc.Authenticate(context.Background(), "third")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAPIKeyService_Authenticate_Rejections(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	revokedAt := fixedNow.Add(-time.Hour)

	tests := []struct {
		name    string
		token   string
		setup   func(repo *mocks.MockAPIKeyRepo)
		wantErr error
	}{
		{name: "empty", token: "", wantErr: domain.ErrUnauthorized},
		{name: "malformed", token: "not-a-key", wantErr: domain.ErrUnauthorized},
		{
			name: "unknown prefix", token: "il_abcd_secret",
			setup: func(repo *mocks.MockAPIKeyRepo) {
				repo.On("GetByPrefix", mock.Anything, "abcd").Return(nil, domain.ErrNotFound)
			},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name: "wrong secret", token: "il_abcd_guess",
			setup: func(repo *mocks.MockAPIKeyRepo) {
				repo.On("GetByPrefix", mock.Anything, "abcd").
					Return(&domain.APIKey{ID: uuid.New(), Prefix: "abcd", KeyHash: string(hash)}, nil)
			},
			wantErr: domain.ErrUnauthorized,
		},
		{
			name: "revoked", token: "il_abcd_secret",
			setup: func(repo *mocks.MockAPIKeyRepo) {
				repo.On("GetByPrefix", mock.Anything, "abcd").
					Return(&domain.APIKey{ID: uuid.New(), Prefix: "abcd", KeyHash: string(hash), RevokedAt: &revokedAt}, nil)
			},
			wantErr: domain.ErrAPIKeyRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.MockAPIKeyRepo)
			if tt.setup != nil {
				tt.setup(repo)
			}
			svc := service.NewAPIKeyService(repo, nil)

			_, err := svc.Authenticate(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "TouchLastUsed", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAPIKeyService_Revoke(t *testing.T) {
	repo := new(mocks.MockAPIKeyRepo)
	svc := service.NewAPIKeyService(repo, nil)
	service.SetAPIKeyServiceClock(svc, func() time.Time { return fixedNow })
	id := uuid.New()

	repo.On("Revoke", mock.Anything, id, fixedNow).Return(nil)
	require.NoError(t, svc.Revoke(context.Background(), id))
	repo.AssertExpectations(t)
}
