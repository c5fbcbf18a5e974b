package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dealscout/sourcing/internal/domain/entities"
	"github.com/dealscout/sourcing/internal/domain/repositories"
)

// Mocks

type MockVendorRepo struct {
	mock.Mock
}

func (m *MockVendorRepo) Create(ctx context.Context, vendor *entities.Vendor) error {
	args := m.Called(ctx, vendor)
	return args.Error(0)
}

func (m *MockVendorRepo) GetByID(ctx context.Context, id string) (*entities.Vendor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Vendor), args.Error(1)
}

func (m *MockVendorRepo) GetByDomain(ctx context.Context, domain string) (*entities.Vendor, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Vendor), args.Error(1)
}

func (m *MockVendorRepo) List(ctx context.Context, filter repositories.VendorFilter) ([]*entities.Vendor, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Vendor), args.Error(1)
}

func (m *MockVendorRepo) ListWithoutEmbedding(ctx context.Context, limit int) ([]*entities.Vendor, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Vendor), args.Error(1)
}

func (m *MockVendorRepo) Update(ctx context.Context, vendor *entities.Vendor) error {
	args := m.Called(ctx, vendor)
	return args.Error(0)
}

func (m *MockVendorRepo) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	args := m.Called(ctx, id, embedding)
	return args.Error(0)
}

func (m *MockVendorRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockVendorIndex struct {
	mock.Mock
}

func (m *MockVendorIndex) IndexVendor(ctx context.Context, vendor *entities.Vendor) error {
	args := m.Called(ctx, vendor)
	return args.Error(0)
}

func (m *MockVendorIndex) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]*repositories.VendorMatch, error) {
	args := m.Called(ctx, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repositories.VendorMatch), args.Error(1)
}

func (m *MockVendorIndex) DeleteVendor(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Tests

func TestBackfillAll_EmbedsVendorsMissingEmbeddings(t *testing.T) {
	mockRepo := new(MockVendorRepo)
	mockEmbedder := new(MockEmbeddingProvider)
	mockIndex := new(MockVendorIndex)

	service := NewEmbeddingBackfillService(mockRepo, mockEmbedder, mockIndex, 2, 3)

	vendors := []*entities.Vendor{
		{ID: "v1", Name: "Acme Freight", Description: "Pallet shipping"},
		{ID: "v2", Name: "Oak & Co", Description: "Custom furniture"},
	}
	mockRepo.On("ListWithoutEmbedding", mock.Anything, 100).Return(vendors, nil).Once()

	embedding := []float32{0.1, 0.2, 0.3}
	mockEmbedder.On("EmbedText", mock.Anything, mock.AnythingOfType("string")).Return(embedding, nil)

	mockRepo.On("UpdateEmbedding", mock.Anything, "v1", embedding).Return(nil)
	mockRepo.On("UpdateEmbedding", mock.Anything, "v2", embedding).Return(nil)

	mockIndex.On("IndexVendor", mock.Anything, mock.MatchedBy(func(v *entities.Vendor) bool {
		return v.HasEmbedding()
	})).Return(nil)

	summary, err := service.BackfillAll(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 2, summary.TotalProcessed)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 0, summary.FailureCount)

	mockRepo.AssertExpectations(t)
	mockEmbedder.AssertExpectations(t)
	mockIndex.AssertNumberOfCalls(t, "IndexVendor", 2)
}

func TestBackfillVendor_EmbedsComposedText(t *testing.T) {
	mockRepo := new(MockVendorRepo)
	mockEmbedder := new(MockEmbeddingProvider)
	mockIndex := new(MockVendorIndex)

	service := NewEmbeddingBackfillService(mockRepo, mockEmbedder, mockIndex, 1, 3)

	vendor := &entities.Vendor{
		ID:           "v1",
		Name:         "Acme Logistics",
		Description:  "Pallet freight and last-mile delivery",
		Routes:       []string{"Lagos-Accra"},
		ServiceAreas: []string{"West Africa"},
	}
	mockRepo.On("GetByID", mock.Anything, "v1").Return(vendor, nil)

	wantText := "Acme Logistics. Pallet freight and last-mile delivery. Routes: Lagos-Accra. Service areas: West Africa"
	embedding := []float32{0.5, 0.5}
	mockEmbedder.On("EmbedText", mock.Anything, wantText).Return(embedding, nil)

	mockRepo.On("UpdateEmbedding", mock.Anything, "v1", embedding).Return(nil)
	mockIndex.On("IndexVendor", mock.Anything, vendor).Return(nil)

	err := service.BackfillVendor(context.Background(), "v1")

	assert.NoError(t, err)
	assert.Equal(t, embedding, vendor.Embedding)
	mockRepo.AssertExpectations(t)
	mockEmbedder.AssertExpectations(t)
	mockIndex.AssertExpectations(t)
}

func TestBackfillVendor_RetriesThenFails(t *testing.T) {
	mockRepo := new(MockVendorRepo)
	mockEmbedder := new(MockEmbeddingProvider)

	// Two attempts, no index wired
	service := NewEmbeddingBackfillService(mockRepo, mockEmbedder, nil, 1, 2)

	vendor := &entities.Vendor{ID: "v1", Name: "Acme", Description: "Freight"}
	mockRepo.On("GetByID", mock.Anything, "v1").Return(vendor, nil)

	mockEmbedder.On("EmbedText", mock.Anything, mock.AnythingOfType("string")).
		Return(nil, errors.New("rate limited"))

	err := service.BackfillVendor(context.Background(), "v1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	mockEmbedder.AssertNumberOfCalls(t, "EmbedText", 2)
	mockRepo.AssertNotCalled(t, "UpdateEmbedding", mock.Anything, mock.Anything, mock.Anything)
}

func TestBackfillAll_AttemptsEachVendorOncePerRun(t *testing.T) {
	mockRepo := new(MockVendorRepo)
	mockEmbedder := new(MockEmbeddingProvider)

	service := NewEmbeddingBackfillService(mockRepo, mockEmbedder, nil, 4, 1)

	// A full page of vendors that all fail to embed stays unembedded, so the
	// repository keeps returning the same page. The run must still terminate.
	page := make([]*entities.Vendor, 100)
	for i := range page {
		page[i] = &entities.Vendor{ID: fmt.Sprintf("v%03d", i), Name: "Vendor", Description: "d"}
	}
	mockRepo.On("ListWithoutEmbedding", mock.Anything, 100).Return(page, nil)

	mockEmbedder.On("EmbedText", mock.Anything, mock.AnythingOfType("string")).
		Return(nil, errors.New("model offline"))

	summary, err := service.BackfillAll(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 100, summary.TotalProcessed)
	assert.Equal(t, 100, summary.FailureCount)
	mockRepo.AssertNumberOfCalls(t, "ListWithoutEmbedding", 2)
	mockEmbedder.AssertNumberOfCalls(t, "EmbedText", 100)
}

func TestBackfillVendor_SkipsVendorWithNoText(t *testing.T) {
	mockRepo := new(MockVendorRepo)
	mockEmbedder := new(MockEmbeddingProvider)

	service := NewEmbeddingBackfillService(mockRepo, mockEmbedder, nil, 1, 3)

	mockRepo.On("GetByID", mock.Anything, "v1").Return(&entities.Vendor{ID: "v1"}, nil)

	err := service.BackfillVendor(context.Background(), "v1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no text to embed")
	mockEmbedder.AssertNotCalled(t, "EmbedText", mock.Anything, mock.Anything)
}
