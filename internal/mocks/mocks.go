// internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/damon-houk/insurance-offer-system/internal/domain/entity"
	"github.com/damon-houk/insurance-offer-system/internal/infrastructure/logger"
	"github.com/stretchr/testify/mock"
)

// MockOfferRepository mocks the OfferRepository interface
type MockOfferRepository struct {
	mock.Mock
}

func (m *MockOfferRepository) Create(ctx context.Context, offer *entity.Offer) (*entity.Offer, error) {
	args := m.Called(ctx, offer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindByID(ctx context.Context, id string) (*entity.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Offer), args.Error(1)
}

func (m *MockOfferRepository) FindAll(ctx context.Context) ([]*entity.Offer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Offer), args.Error(1)
}

func (m *MockOfferRepository) Save(ctx context.Context, offer *entity.Offer) (*entity.Offer, error) {
	args := m.Called(ctx, offer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Offer), args.Error(1)
}

func (m *MockOfferRepository) SaveAll(ctx context.Context, offers []*entity.Offer) ([]*entity.Offer, error) {
	args := m.Called(ctx, offers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Offer), args.Error(1)
}

func (m *MockOfferRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockOfferEventPublisher mocks the OfferEventPublisher interface
type MockOfferEventPublisher struct {
	mock.Mock
}

func (m *MockOfferEventPublisher) Publish(ctx context.Context, event entity.OfferEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockOfferEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockLogger mocks the logger interface
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) Fatal(msg string, fields map[string]interface{}) {
	m.Called(msg, fields)
}

func (m *MockLogger) WithField(key string, value interface{}) logger.Logger {
	args := m.Called(key, value)
	return args.Get(0).(logger.Logger)
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	args := m.Called(fields)
	return args.Get(0).(logger.Logger)
}
