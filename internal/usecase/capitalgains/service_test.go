package capitalgains

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/usecase/priceseries"
)

// MockFundRepository is a mock implementation of FundRepository for testing
type MockFundRepository struct {
	mock.Mock
}

func (m *MockFundRepository) GetByID(ctx context.Context, id string) (*domain.Fund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Fund), args.Error(1)
}

func (m *MockFundRepository) List(ctx context.Context) ([]*domain.Fund, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Fund), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository for testing
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

// MockTaxRateRepository is a mock implementation of TaxRateRepository for testing
type MockTaxRateRepository struct {
	mock.Mock
}

func (m *MockTaxRateRepository) GetByYear(ctx context.Context, year int) (*domain.TaxRateConfig, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaxRateConfig), args.Error(1)
}

func (m *MockTaxRateRepository) Create(ctx context.Context, cfg *domain.TaxRateConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// MockPriceSource is a mock implementation of PriceSource for testing
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) LoadSeries(ctx context.Context, fundID string) (*domain.PriceSeries, error) {
	args := m.Called(ctx, fundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PriceSeries), args.Error(1)
}

type mocks struct {
	funds  *MockFundRepository
	txs    *MockTransactionRepository
	rates  *MockTaxRateRepository
	prices *MockPriceSource
}

func newService() (*CapitalGainsService, mocks) {
	m := mocks{
		funds:  new(MockFundRepository),
		txs:    new(MockTransactionRepository),
		rates:  new(MockTaxRateRepository),
		prices: new(MockPriceSource),
	}
	return NewCapitalGainsService(m.funds, m.txs, m.rates, m.prices), m
}

func (m mocks) assertExpectations(t *testing.T) {
	m.funds.AssertExpectations(t)
	m.txs.AssertExpectations(t)
	m.rates.AssertExpectations(t)
	m.prices.AssertExpectations(t)
}

func equityFund(nav string, navDate time.Time) *domain.Fund {
	return &domain.Fund{
		ID:            "INF200K01RJ1",
		Name:          "Bluechip Equity Fund",
		Type:          "Equity",
		LatestNAV:     decimal.NewNullDecimal(decimal.RequireFromString(nav)),
		LatestNAVDate: &navDate,
	}
}

func buy(userID uuid.UUID, units, price string, date time.Time, seq int64) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		FundID:       "INF200K01RJ1",
		Type:         domain.TxTypeBuy,
		Units:        decimal.RequireFromString(units),
		Price:        decimal.RequireFromString(price),
		TransactedAt: date,
		Seq:          seq,
	}
}

func TestEstimate_UsesLatestNAVWhenNoSellDate(t *testing.T) {
	ctx := context.Background()
	service, m := newService()
	userID := uuid.New()

	// Latest NAV on 2026-02-10 falls in fiscal year 2025
	fund := equityFund("200", domain.Date(2026, time.February, 10))
	rates := domain.DefaultTaxRateConfig(2025)
	txs := []*domain.Transaction{
		buy(userID, "2000", "100", domain.Date(2023, time.June, 1), 1),
	}

	m.funds.On("GetByID", ctx, fund.ID).Return(fund, nil)
	m.rates.On("GetByYear", ctx, 2025).Return(&rates, nil)
	m.txs.On("List", ctx, mock.MatchedBy(func(f domain.TransactionFilter) bool {
		return f.UserID == userID && f.FundID == fund.ID && f.AccountID == nil
	})).Return(txs, nil)

	res, err := service.Estimate(ctx, userID, fund.ID, nil, nil)

	require.NoError(t, err)
	assert.True(t, res.Applicable)
	assert.Equal(t, domain.Date(2026, time.February, 10), res.SellDate)
	assert.Equal(t, "9375.00", res.LongTerm.Tax.StringFixed(2))
	m.prices.AssertNotCalled(t, "LoadSeries", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

func TestEstimate_UsesExactNAVOnSellDate(t *testing.T) {
	ctx := context.Background()
	service, m := newService()
	userID := uuid.New()
	sellDate := domain.Date(2025, time.May, 5)

	fund := equityFund("250", domain.Date(2026, time.February, 10))
	rates := domain.DefaultTaxRateConfig(2025)
	series := domain.NewPriceSeries(fund.ID, []domain.PricePoint{
		{Date: sellDate, Price: decimal.NewFromInt(110)},
	})
	txs := []*domain.Transaction{
		buy(userID, "10", "100", domain.Date(2025, time.January, 5), 1),
	}

	m.funds.On("GetByID", ctx, fund.ID).Return(fund, nil)
	m.prices.On("LoadSeries", ctx, fund.ID).Return(series, nil)
	m.rates.On("GetByYear", ctx, 2025).Return(&rates, nil)
	m.txs.On("List", ctx, mock.Anything).Return(txs, nil)

	res, err := service.Estimate(ctx, userID, fund.ID, nil, &sellDate)

	require.NoError(t, err)
	assert.True(t, res.SellPrice.Equal(decimal.NewFromInt(110)))
	assert.True(t, res.ShortTerm.Gain.Equal(decimal.NewFromInt(100)))
	assert.True(t, res.ShortTerm.Tax.Equal(decimal.NewFromInt(20)))
	m.assertExpectations(t)
}

func TestEstimate_Errors(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	missingDay := domain.Date(2025, time.May, 4)

	t.Run("no NAV on requested sell date", func(t *testing.T) {
		service, m := newService()
		fund := equityFund("250", domain.Date(2026, time.February, 10))
		m.funds.On("GetByID", ctx, fund.ID).Return(fund, nil)
		m.prices.On("LoadSeries", ctx, fund.ID).Return(domain.NewPriceSeries(fund.ID, nil), nil)

		_, err := service.Estimate(ctx, userID, fund.ID, nil, &missingDay)

		assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
		m.assertExpectations(t)
	})

	t.Run("tax rates not configured", func(t *testing.T) {
		service, m := newService()
		fund := equityFund("250", domain.Date(2031, time.February, 10))
		m.funds.On("GetByID", ctx, fund.ID).Return(fund, nil)
		m.rates.On("GetByYear", ctx, 2030).Return(nil, domain.ErrNotFound)

		_, err := service.Estimate(ctx, userID, fund.ID, nil, nil)

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), "fiscal year 2030")
		m.assertExpectations(t)
	})

	t.Run("fund without latest NAV", func(t *testing.T) {
		service, m := newService()
		fund := &domain.Fund{ID: "F1", Name: "New Equity Fund", Type: "Equity"}
		m.funds.On("GetByID", ctx, fund.ID).Return(fund, nil)

		_, err := service.Estimate(ctx, userID, fund.ID, nil, nil)

		assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
	})
}

func TestEstimate_NonEquityShortCircuits(t *testing.T) {
	ctx := context.Background()
	service, m := newService()
	fund := &domain.Fund{ID: "F2", Name: "Liquid Fund", Type: "Debt"}

	m.funds.On("GetByID", ctx, fund.ID).Return(fund, nil)

	res, err := service.Estimate(ctx, uuid.New(), fund.ID, nil, nil)

	require.NoError(t, err)
	assert.False(t, res.Applicable)
	m.txs.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	m.rates.AssertNotCalled(t, "GetByYear", mock.Anything, mock.Anything)
	m.assertExpectations(t)
}

// MockPriceLookup answers single-date NAV lookups like the NAV history table
type MockPriceLookup struct {
	MockPriceSource
}

func (m *MockPriceLookup) PriceAt(ctx context.Context, fundID string, date time.Time) (*domain.PricePoint, error) {
	args := m.Called(ctx, fundID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PricePoint), args.Error(1)
}

func TestEstimate_SellDateMissingFromCacheIsReadFromDatabase(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	sellDate := domain.Date(2025, time.May, 5)

	fund := equityFund("250", domain.Date(2026, time.February, 10))
	rates := domain.DefaultTaxRateConfig(2025)

	funds := new(MockFundRepository)
	txs := new(MockTransactionRepository)
	taxRates := new(MockTaxRateRepository)
	cache := new(MockPriceSource)
	db := new(MockPriceLookup)

	cache.On("LoadSeries", ctx, fund.ID).Return(domain.NewPriceSeries(fund.ID, []domain.PricePoint{
		{Date: domain.Date(2025, time.January, 5), Price: decimal.NewFromInt(100)},
	}), nil)
	db.On("PriceAt", ctx, fund.ID, sellDate).Return(&domain.PricePoint{Date: sellDate, Price: decimal.NewFromInt(110)}, nil)
	funds.On("GetByID", ctx, fund.ID).Return(fund, nil)
	taxRates.On("GetByYear", ctx, 2025).Return(&rates, nil)
	txs.On("List", ctx, mock.Anything).Return([]*domain.Transaction{
		buy(userID, "10", "100", domain.Date(2025, time.January, 5), 1),
	}, nil)

	service := NewCapitalGainsService(funds, txs, taxRates, priceseries.NewFallbackSource(cache, db, nil))
	res, err := service.Estimate(ctx, userID, fund.ID, nil, &sellDate)

	require.NoError(t, err)
	assert.Equal(t, sellDate, res.SellDate)
	assert.True(t, res.SellPrice.Equal(decimal.NewFromInt(110)))
	assert.True(t, res.ShortTerm.Gain.Equal(decimal.NewFromInt(100)))
	db.AssertExpectations(t)
	cache.AssertExpectations(t)
}
