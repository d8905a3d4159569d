package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/usecase/capitalgains"
	"github.com/simaogato/navfolio-backend/internal/usecase/ledger"
	"github.com/simaogato/navfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/navfolio-backend/internal/usecase/simulator"
)

// Server implements the PortfolioService gRPC server
type Server struct {
	PortfolioService    *portfolio.PortfolioService
	CapitalGainsService *capitalgains.CapitalGainsService
	SimulatorService    *simulator.SimulatorService
	LedgerService       *ledger.LedgerService
}

// NewServer creates a new gRPC server instance
func NewServer(
	portfolioService *portfolio.PortfolioService,
	capitalGainsService *capitalgains.CapitalGainsService,
	simulatorService *simulator.SimulatorService,
	ledgerService *ledger.LedgerService,
) *Server {
	return &Server{
		PortfolioService:    portfolioService,
		CapitalGainsService: capitalGainsService,
		SimulatorService:    simulatorService,
		LedgerService:       ledgerService,
	}
}

// GetPortfolioSummary handles the GetPortfolioSummary RPC
func (s *Server) GetPortfolioSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)

	userID, err := req.uuid("user_id")
	if err != nil {
		return nil, err
	}
	accountID, err := req.optionalUUID("account_id")
	if err != nil {
		return nil, err
	}

	summary, err := s.PortfolioService.Summary(ctx, userID, accountID)
	if err != nil {
		return nil, mapError(err)
	}

	return respond(summaryToMap(summary))
}

// GetFundSummary handles the GetFundSummary RPC
func (s *Server) GetFundSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)

	userID, err := req.uuid("user_id")
	if err != nil {
		return nil, err
	}
	fundID, err := req.requiredStr("fund_id")
	if err != nil {
		return nil, err
	}
	accountID, err := req.optionalUUID("account_id")
	if err != nil {
		return nil, err
	}

	summary, err := s.PortfolioService.FundSummary(ctx, userID, fundID, accountID)
	if err != nil {
		return nil, mapError(err)
	}

	return respond(fundSummaryToMap(summary))
}

// GetFundReturns handles the GetFundReturns RPC
func (s *Server) GetFundReturns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fundID, err := newRequest(in).requiredStr("fund_id")
	if err != nil {
		return nil, err
	}

	returns, err := s.PortfolioService.FundReturns(ctx, fundID)
	if err != nil {
		return nil, mapError(err)
	}

	return respond(map[string]interface{}{
		"fund_id": fundID,
		"returns": returnsToList(returns),
	})
}

// EstimateCapitalGains handles the EstimateCapitalGains RPC
func (s *Server) EstimateCapitalGains(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)

	userID, err := req.uuid("user_id")
	if err != nil {
		return nil, err
	}
	fundID, err := req.requiredStr("fund_id")
	if err != nil {
		return nil, err
	}
	accountID, err := req.optionalUUID("account_id")
	if err != nil {
		return nil, err
	}
	sellDate, err := req.optionalDate("sell_date")
	if err != nil {
		return nil, err
	}

	result, err := s.CapitalGainsService.Estimate(ctx, userID, fundID, accountID, sellDate)
	if err != nil {
		return nil, mapError(err)
	}

	out := capitalGainsToMap(*result)
	out["fund_id"] = fundID
	return respond(out)
}

// SimulateInvestment handles the SimulateInvestment RPC
func (s *Server) SimulateInvestment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)

	fundID, err := req.requiredStr("fund_id")
	if err != nil {
		return nil, err
	}
	startDate, err := req.date("start_date")
	if err != nil {
		return nil, err
	}
	amount, err := req.decimal("amount")
	if err != nil {
		return nil, err
	}
	stepUp, err := req.optionalDecimal("step_up_percent")
	if err != nil {
		return nil, err
	}

	mode := simulator.ModeLumpSum
	if raw := req.str("mode"); raw != "" {
		if mode, err = simulator.ParseMode(raw); err != nil {
			return nil, invalidArgument("mode", err)
		}
	}

	result, err := s.SimulatorService.Simulate(ctx, simulator.Request{
		FundID:        fundID,
		StartDate:     startDate,
		Amount:        amount,
		Mode:          mode,
		StepUpPercent: stepUp,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return respond(simulationToMap(result))
}

// RecordTransaction handles the RecordTransaction RPC
func (s *Server) RecordTransaction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)

	userID, err := req.uuid("user_id")
	if err != nil {
		return nil, err
	}
	accountID, err := req.uuid("account_id")
	if err != nil {
		return nil, err
	}
	fundID, err := req.requiredStr("fund_id")
	if err != nil {
		return nil, err
	}
	rawType, err := req.requiredStr("type")
	if err != nil {
		return nil, err
	}
	txType, err := domain.ParseTxType(rawType)
	if err != nil {
		return nil, invalidArgument("type", err)
	}
	units, err := req.decimal("units")
	if err != nil {
		return nil, err
	}
	price, err := req.decimal("price")
	if err != nil {
		return nil, err
	}
	transactedAt, err := req.date("transacted_at")
	if err != nil {
		return nil, err
	}

	tx, err := s.LedgerService.RecordTransaction(ctx, ledger.RecordTransactionInput{
		UserID:       userID,
		AccountID:    accountID,
		FundID:       fundID,
		Type:         txType,
		Units:        units,
		Price:        price,
		TransactedAt: transactedAt,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return respond(transactionToMap(tx))
}

// ListTransactions handles the ListTransactions RPC
func (s *Server) ListTransactions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := newRequest(in)

	userID, err := req.uuid("user_id")
	if err != nil {
		return nil, err
	}
	accountID, err := req.optionalUUID("account_id")
	if err != nil {
		return nil, err
	}

	txs, err := s.LedgerService.ListTransactions(ctx, domain.TransactionFilter{
		UserID:    userID,
		FundID:    req.str("fund_id"),
		AccountID: accountID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	out := make([]interface{}, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionToMap(tx))
	}

	return respond(map[string]interface{}{
		"transactions": out,
		"total_count":  len(txs),
	})
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}

	// Already a status (e.g. context deadline surfaced by a client call)
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNAVMismatch),
		errors.Is(err, domain.ErrOversell):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrPriceUnavailable):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrCacheUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Compile-time check
var _ PortfolioServer = (*Server)(nil)
