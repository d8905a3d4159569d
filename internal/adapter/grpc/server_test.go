package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/logging"
	"github.com/simaogato/navfolio-backend/internal/usecase/capitalgains"
	"github.com/simaogato/navfolio-backend/internal/usecase/ledger"
	"github.com/simaogato/navfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/navfolio-backend/internal/usecase/simulator"
)

// MockFundRepository is a mock implementation of FundRepository
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

// MockTransactionRepository is a mock implementation of TransactionRepository
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

// MockPriceSource is a mock implementation of PriceSource
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

// MockTaxRateRepository is a mock implementation of TaxRateRepository
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

const testToken = "test-token-123"

type fixture struct {
	funds  *MockFundRepository
	txs    *MockTransactionRepository
	prices *MockPriceSource
	taxes  *MockTaxRateRepository
	client *Client
}

// newFixture serves the PortfolioService over an in-memory listener
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		funds:  new(MockFundRepository),
		txs:    new(MockTransactionRepository),
		prices: new(MockPriceSource),
		taxes:  new(MockTaxRateRepository),
	}

	portfolioService := portfolio.NewPortfolioService(f.funds, f.txs, f.prices, nil, logging.NewSilent(), 10)
	portfolioService.Now = func() time.Time { return domain.Date(2024, time.January, 12) }

	server := NewServer(
		portfolioService,
		capitalgains.NewCapitalGainsService(f.funds, f.txs, f.taxes, f.prices),
		simulator.NewSimulatorService(f.funds, f.prices, f.taxes),
		ledger.NewLedgerService(f.funds, f.txs, f.prices),
	)

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(logging.NewSilent()),
		AuthInterceptor(testToken),
	))
	RegisterPortfolioServer(srv, server)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f.client = NewClient(conn)
	return f
}

func authed() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", testToken)
}

func equityFund(navDate time.Time, nav string) *domain.Fund {
	return &domain.Fund{
		ID:            "INF000A01",
		Name:          "Flexi Cap Growth",
		Type:          "Equity",
		LatestNAV:     decimal.NewNullDecimal(decimal.RequireFromString(nav)),
		LatestNAVDate: &navDate,
	}
}

func buyTx(userID uuid.UUID, units, price string, date time.Time, seq int64) *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		AccountID:    uuid.New(),
		FundID:       "INF000A01",
		Type:         domain.TxTypeBuy,
		Units:        decimal.RequireFromString(units),
		Price:        decimal.RequireFromString(price),
		TransactedAt: date,
		Seq:          seq,
	}
}

func TestServer_GetPortfolioSummary(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	f.txs.On("List", mock.Anything, domain.TransactionFilter{UserID: userID}).
		Return([]*domain.Transaction{buyTx(userID, "10", "100", domain.Date(2023, time.January, 10), 1)}, nil)
	f.funds.On("GetByID", mock.Anything, "INF000A01").
		Return(equityFund(domain.Date(2024, time.January, 10), "120"), nil)

	resp, err := f.client.Call(authed(), MethodGetPortfolioSummary, map[string]interface{}{
		"user_id": userID.String(),
	})

	require.NoError(t, err)
	assert.Equal(t, "1000", resp["total_invested"])
	assert.Equal(t, "1200", resp["current_value"])
	assert.Equal(t, "200", resp["profit"])
	assert.Equal(t, "20", resp["absolute_return"])
	assert.Equal(t, "2024-01-12", resp["as_of"])
	// One year, +20%
	assert.Equal(t, "20", resp["xirr"])

	funds := resp["funds"].([]interface{})
	require.Len(t, funds, 1)
	fund := funds[0].(map[string]interface{})
	assert.Equal(t, "INF000A01", fund["fund_id"])
	assert.Equal(t, false, fund["stale"])
	assert.Len(t, fund["open_lots"], 1)
}

func TestServer_AuthRequired(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.Call(context.Background(), MethodGetFundReturns, map[string]interface{}{"fund_id": "INF000A01"})

	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	f.funds.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestServer_InvalidArguments(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		req    map[string]interface{}
		errMsg string
	}{
		{
			name:   "missing user id",
			method: MethodGetPortfolioSummary,
			req:    map[string]interface{}{},
			errMsg: "user_id is required",
		},
		{
			name:   "malformed user id",
			method: MethodGetFundSummary,
			req:    map[string]interface{}{"user_id": "not-a-uuid", "fund_id": "F"},
			errMsg: "invalid user_id format",
		},
		{
			name:   "malformed sell date",
			method: MethodEstimateCapitalGains,
			req:    map[string]interface{}{"user_id": uuid.NewString(), "fund_id": "F", "sell_date": "31/03/2024"},
			errMsg: "invalid sell_date format",
		},
		{
			name:   "unknown simulation mode",
			method: MethodSimulateInvestment,
			req:    map[string]interface{}{"fund_id": "F", "start_date": "2020-01-01", "amount": "1000", "mode": "WEEKLY"},
			errMsg: "invalid mode",
		},
		{
			name:   "unknown transaction type",
			method: MethodRecordTransaction,
			req: map[string]interface{}{
				"user_id": uuid.NewString(), "account_id": uuid.NewString(), "fund_id": "F",
				"type": "SWITCH", "units": "1", "price": "1", "transacted_at": "2024-01-01",
			},
			errMsg: "invalid type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.Call(authed(), tt.method, tt.req)

			st, ok := status.FromError(err)
			require.True(t, ok, "error should be a gRPC status")
			assert.Equal(t, codes.InvalidArgument, st.Code())
			assert.Contains(t, st.Message(), tt.errMsg)
		})
	}

	f.funds.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestServer_GetFundSummary_UnknownFund(t *testing.T) {
	f := newFixture(t)

	f.funds.On("GetByID", mock.Anything, "GONE").Return(nil, fmt.Errorf("fund GONE: %w", domain.ErrNotFound))

	_, err := f.client.Call(authed(), MethodGetFundSummary, map[string]interface{}{
		"user_id": uuid.NewString(),
		"fund_id": "GONE",
	})

	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_GetFundReturns_NoLatestNAV(t *testing.T) {
	f := newFixture(t)

	f.funds.On("GetByID", mock.Anything, "INF000A01").Return(&domain.Fund{ID: "INF000A01", Name: "New Fund"}, nil)

	resp, err := f.client.Call(authed(), MethodGetFundReturns, map[string]interface{}{"fund_id": "INF000A01"})

	require.NoError(t, err)
	returns := resp["returns"].([]interface{})
	require.Len(t, returns, len(domain.DefaultWindows()))
	first := returns[0].(map[string]interface{})
	assert.Equal(t, "6M", first["window"])
	assert.Nil(t, first["value"])
	f.prices.AssertNotCalled(t, "LoadSeries", mock.Anything, mock.Anything)
}

func TestServer_EstimateCapitalGains_NotEquity(t *testing.T) {
	f := newFixture(t)

	f.funds.On("GetByID", mock.Anything, "DEBT01").Return(&domain.Fund{ID: "DEBT01", Name: "Liquid", Type: "Debt"}, nil)

	resp, err := f.client.Call(authed(), MethodEstimateCapitalGains, map[string]interface{}{
		"user_id": uuid.NewString(),
		"fund_id": "DEBT01",
	})

	require.NoError(t, err)
	assert.Equal(t, false, resp["applicable"])
	assert.Equal(t, capitalgains.ReasonNotEquity, resp["reason"])
	assert.Equal(t, "DEBT01", resp["fund_id"])
}

func TestServer_RecordTransaction(t *testing.T) {
	userID, accountID := uuid.New(), uuid.New()
	day := domain.Date(2024, time.January, 5)
	series := domain.NewPriceSeries("INF000A01", []domain.PricePoint{{Date: day, Price: decimal.NewFromInt(100)}})

	request := func(txType, units string) map[string]interface{} {
		return map[string]interface{}{
			"user_id":       userID.String(),
			"account_id":    accountID.String(),
			"fund_id":       "INF000A01",
			"type":          txType,
			"units":         units,
			"price":         "100.05",
			"transacted_at": "2024-01-05",
		}
	}

	t.Run("buy is persisted", func(t *testing.T) {
		f := newFixture(t)
		f.funds.On("GetByID", mock.Anything, "INF000A01").Return(equityFund(day, "100"), nil)
		f.prices.On("LoadSeries", mock.Anything, "INF000A01").Return(series, nil)
		f.txs.On("Create", mock.Anything, mock.AnythingOfType("*domain.Transaction")).
			Run(func(args mock.Arguments) { args.Get(1).(*domain.Transaction).Seq = 7 }).
			Return(nil)

		resp, err := f.client.Call(authed(), MethodRecordTransaction, request("BUY", "2.5"))

		require.NoError(t, err)
		assert.Equal(t, "BUY", resp["type"])
		assert.Equal(t, "2.5", resp["units"])
		assert.Equal(t, "2024-01-05", resp["transacted_at"])
		assert.Equal(t, "7", resp["seq"])
		f.txs.AssertExpectations(t)
	})

	t.Run("oversell is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.funds.On("GetByID", mock.Anything, "INF000A01").Return(equityFund(day, "100"), nil)
		f.prices.On("LoadSeries", mock.Anything, "INF000A01").Return(series, nil)
		f.txs.On("List", mock.Anything, domain.TransactionFilter{UserID: userID, FundID: "INF000A01"}).
			Return([]*domain.Transaction{buyTx(userID, "5", "90", domain.Date(2024, time.January, 1), 1)}, nil)

		_, err := f.client.Call(authed(), MethodRecordTransaction, request("SELL", "10"))

		st, _ := status.FromError(err)
		assert.Equal(t, codes.InvalidArgument, st.Code())
		assert.Contains(t, st.Message(), "only 5 units held")
		f.txs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestServer_ListTransactions(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	f.txs.On("List", mock.Anything, domain.TransactionFilter{UserID: userID, FundID: "INF000A01"}).
		Return([]*domain.Transaction{
			buyTx(userID, "1", "10", domain.Date(2024, time.January, 1), 1),
			buyTx(userID, "2", "11", domain.Date(2024, time.January, 2), 2),
		}, nil)

	resp, err := f.client.Call(authed(), MethodListTransactions, map[string]interface{}{
		"user_id": userID.String(),
		"fund_id": "INF000A01",
	})

	require.NoError(t, err)
	assert.Equal(t, float64(2), resp["total_count"])
	txs := resp["transactions"].([]interface{})
	assert.Equal(t, "22", txs[1].(map[string]interface{})["amount"])
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"invalid input", fmt.Errorf("units must be positive: %w", domain.ErrInvalidInput), codes.InvalidArgument},
		{"nav mismatch", fmt.Errorf("wrap: %w", domain.ErrNAVMismatch), codes.InvalidArgument},
		{"oversell", fmt.Errorf("wrap: %w", domain.ErrOversell), codes.InvalidArgument},
		{"not found", fmt.Errorf("wrap: %w", domain.ErrNotFound), codes.NotFound},
		{"price unavailable", fmt.Errorf("wrap: %w", domain.ErrPriceUnavailable), codes.NotFound},
		{"cache unavailable", fmt.Errorf("wrap: %w", domain.ErrCacheUnavailable), codes.Unavailable},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"existing status", status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied},
		{"unknown", errors.New("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(mapError(tt.err)))
		})
	}

	assert.NoError(t, mapError(nil))
}
