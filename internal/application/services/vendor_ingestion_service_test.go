package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dealscout/sourcing/internal/domain/entities"
	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

func TestUpsertVendor_CreatesNewVendor(t *testing.T) {
	mockRepo := new(MockVendorRepo)
	mockEmbedder := new(MockEmbeddingProvider)
	mockIndex := new(MockVendorIndex)

	service := NewVendorIngestionService(mockRepo, mockEmbedder, mockIndex)

	mockRepo.On("GetByDomain", mock.Anything, "acmefreight.com").
		Return(nil, apperrors.NewNotFoundError("vendor not found"))
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Vendor")).Return(nil)

	embedding := []float32{0.1, 0.2}
	mockEmbedder.On("EmbedText", mock.Anything, mock.AnythingOfType("string")).Return(embedding, nil)
	mockRepo.On("UpdateEmbedding", mock.Anything, mock.AnythingOfType("string"), embedding).Return(nil)
	mockIndex.On("IndexVendor", mock.Anything, mock.AnythingOfType("*entities.Vendor")).Return(nil)

	vendor, created, err := service.UpsertVendor(context.Background(), VendorSeed{
		Name:        "Acme Freight",
		Website:     "https://www.acmefreight.com",
		Description: "Pallet freight and last-mile delivery",
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "acmefreight.com", vendor.Domain)
	assert.Equal(t, embedding, vendor.Embedding)
	mockRepo.AssertExpectations(t)
	mockIndex.AssertExpectations(t)
}

func TestUpsertVendor_UpdatesExistingWithoutReembedding(t *testing.T) {
	mockRepo := new(MockVendorRepo)
	mockEmbedder := new(MockEmbeddingProvider)
	mockIndex := new(MockVendorIndex)

	service := NewVendorIngestionService(mockRepo, mockEmbedder, mockIndex)

	existing := &entities.Vendor{
		ID:          "v1",
		Name:        "Acme Freight",
		Domain:      "acmefreight.com",
		Website:     "https://acmefreight.com",
		Description: "Pallet freight and last-mile delivery",
		Embedding:   []float32{0.4, 0.6},
	}
	mockRepo.On("GetByDomain", mock.Anything, "acmefreight.com").Return(existing, nil)
	mockRepo.On("Update", mock.Anything, existing).Return(nil)
	mockIndex.On("IndexVendor", mock.Anything, existing).Return(nil)

	vendor, created, err := service.UpsertVendor(context.Background(), VendorSeed{
		Name:        "Acme Freight",
		Website:     "https://acmefreight.com",
		Description: "Pallet freight and last-mile delivery",
	})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "v1", vendor.ID)
	mockEmbedder.AssertNotCalled(t, "EmbedText", mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
	mockIndex.AssertExpectations(t)
}

func TestUpsertVendor_ReembedsWhenDescriptionChanges(t *testing.T) {
	mockRepo := new(MockVendorRepo)
	mockEmbedder := new(MockEmbeddingProvider)

	service := NewVendorIngestionService(mockRepo, mockEmbedder, nil)

	existing := &entities.Vendor{
		ID:          "v1",
		Name:        "Acme Freight",
		Domain:      "acmefreight.com",
		Website:     "https://acmefreight.com",
		Description: "Pallet freight",
		Embedding:   []float32{0.4, 0.6},
	}
	mockRepo.On("GetByDomain", mock.Anything, "acmefreight.com").Return(existing, nil)
	mockRepo.On("Update", mock.Anything, existing).Return(nil)

	fresh := []float32{0.9, 0.1}
	mockEmbedder.On("EmbedText", mock.Anything, "Acme Freight. Nationwide pallet freight with refrigerated trailers").
		Return(fresh, nil)
	mockRepo.On("UpdateEmbedding", mock.Anything, "v1", fresh).Return(nil)

	vendor, created, err := service.UpsertVendor(context.Background(), VendorSeed{
		Name:        "Acme Freight",
		Website:     "https://acmefreight.com",
		Description: "Nationwide pallet freight with refrigerated trailers",
	})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, fresh, vendor.Embedding)
	mockRepo.AssertExpectations(t)
	mockEmbedder.AssertExpectations(t)
}

func TestUpsertVendor_RequiresWebsiteDomain(t *testing.T) {
	mockRepo := new(MockVendorRepo)

	service := NewVendorIngestionService(mockRepo, nil, nil)

	_, _, err := service.UpsertVendor(context.Background(), VendorSeed{
		Name:        "No Website Vendor",
		Description: "Something",
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "website domain")
	mockRepo.AssertNotCalled(t, "GetByDomain", mock.Anything, mock.Anything)
}

func TestUpsertVendor_EmbedFailureStillPersistsVendor(t *testing.T) {
	mockRepo := new(MockVendorRepo)
	mockEmbedder := new(MockEmbeddingProvider)
	mockIndex := new(MockVendorIndex)

	service := NewVendorIngestionService(mockRepo, mockEmbedder, mockIndex)

	mockRepo.On("GetByDomain", mock.Anything, "oakandco.com").
		Return(nil, apperrors.NewNotFoundError("vendor not found"))
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Vendor")).Return(nil)
	mockEmbedder.On("EmbedText", mock.Anything, mock.AnythingOfType("string")).
		Return(nil, assert.AnError)

	vendor, created, err := service.UpsertVendor(context.Background(), VendorSeed{
		Name:        "Oak & Co",
		Website:     "https://oakandco.com",
		Description: "Custom furniture upholstery",
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, vendor.HasEmbedding())
	mockRepo.AssertNotCalled(t, "UpdateEmbedding", mock.Anything, mock.Anything, mock.Anything)
	mockIndex.AssertNotCalled(t, "IndexVendor", mock.Anything, mock.Anything)
}

func TestIngestBatch_SkipsFailingSeeds(t *testing.T) {
	mockRepo := new(MockVendorRepo)

	service := NewVendorIngestionService(mockRepo, nil, nil)

	mockRepo.On("GetByDomain", mock.Anything, "acmefreight.com").
		Return(nil, apperrors.NewNotFoundError("vendor not found"))
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*entities.Vendor")).Return(nil)

	summary, err := service.IngestBatch(context.Background(), []VendorSeed{
		{Name: "Acme Freight", Website: "https://acmefreight.com", Description: "Pallet freight"},
		{Name: "Broken Seed"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, summary.RecordsProcessed)
	assert.Equal(t, 1, summary.VendorsCreated)
	assert.Equal(t, 1, summary.VendorsSkipped)
	assert.Equal(t, 0, summary.VendorsUpdated)
}
