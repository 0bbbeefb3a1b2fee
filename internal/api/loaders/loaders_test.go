package loaders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/pharmacyclaims/internal/domain/entities"
	"github.com/zatekoja/pharmacyclaims/internal/mocks"
)

func TestProviderLoader_BatchesKeys(t *testing.T) {
	providerRepo := mocks.NewInsuranceRepository(t)
	planRepo := mocks.NewPlanRepository(t)

	providerRepo.On("GetByIDs", mock.Anything, mock.MatchedBy(func(ids []string) bool {
		return len(ids) == 2
	})).Return([]*entities.InsuranceProvider{
		{ID: "prov-1", Name: "Acme"},
		{ID: "prov-2", Name: "Beta"},
	}, nil).Once()

	l := NewLoaders(providerRepo, planRepo)
	ctx := context.Background()

	first := l.ProviderLoader.Load(ctx, "prov-1")
	second := l.ProviderLoader.Load(ctx, "prov-2")

	p1, err := first()
	require.NoError(t, err)
	p2, err := second()
	require.NoError(t, err)
	assert.Equal(t, "Acme", p1.Name)
	assert.Equal(t, "Beta", p2.Name)
}

func TestPlanLoader_MissingKey(t *testing.T) {
	providerRepo := mocks.NewInsuranceRepository(t)
	planRepo := mocks.NewPlanRepository(t)
	planRepo.On("GetByIDs", mock.Anything, []string{"ghost"}).Return([]*entities.InsurancePlan{}, nil)

	l := NewLoaders(providerRepo, planRepo)
	_, err := l.PlanLoader.Load(context.Background(), "ghost")()
	assert.EqualError(t, err, "plan ghost not found")
}

func TestCollect_PropagatesBatchError(t *testing.T) {
	results := collect([]string{"a", "b"}, nil, errors.New("db down"),
		func(p *entities.InsurancePlan) string { return p.ID }, "plan")

	require.Len(t, results, 2)
	for _, r := range results {
		assert.EqualError(t, r.Error, "db down")
	}
}

func TestFor_WithoutLoaders(t *testing.T) {
	assert.Nil(t, For(context.Background()))
}
