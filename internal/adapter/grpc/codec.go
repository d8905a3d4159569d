package grpc

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/usecase/capitalgains"
	"github.com/simaogato/navfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/navfolio-backend/internal/usecase/simulator"
)

// request reads typed fields from a Struct message.
// Every parse failure is an InvalidArgument status naming the field.
type request struct {
	fields map[string]*structpb.Value
}

func newRequest(in *structpb.Struct) request {
	return request{fields: in.GetFields()}
}

// str returns the string field, or "" when absent or null
func (r request) str(name string) string {
	v, ok := r.fields[name]
	if !ok {
		return ""
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}

func (r request) requiredStr(name string) (string, error) {
	s := r.str(name)
	if s == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return s, nil
}

func (r request) uuid(name string) (uuid.UUID, error) {
	s, err := r.requiredStr(name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return id, nil
}

func (r request) optionalUUID(name string) (*uuid.UUID, error) {
	if r.str(name) == "" {
		return nil, nil
	}
	id, err := r.uuid(name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// decimal accepts both string and number values
func (r request) decimal(name string) (decimal.Decimal, error) {
	s, err := r.requiredStr(name)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return d, nil
}

func (r request) optionalDecimal(name string) (decimal.Decimal, error) {
	if r.str(name) == "" {
		return decimal.Zero, nil
	}
	return r.decimal(name)
}

func (r request) date(name string) (time.Time, error) {
	s, err := r.requiredStr(name)
	if err != nil {
		return time.Time{}, err
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return d, nil
}

func (r request) optionalDate(name string) (*time.Time, error) {
	if r.str(name) == "" {
		return nil, nil
	}
	d, err := r.date(name)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// respond converts a response map into a Struct message
func respond(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func nullDecimal(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func dateValue(t time.Time) string {
	return t.Format(domain.DateFormat)
}

func optionalDateValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return dateValue(*t)
}

func lotsToList(lots []domain.Lot) []interface{} {
	out := make([]interface{}, 0, len(lots))
	for _, lot := range lots {
		out = append(out, map[string]interface{}{
			"fund_id":           lot.FundID,
			"units_remaining":   lot.UnitsRemaining.String(),
			"acquisition_price": lot.AcquisitionPrice.String(),
			"acquisition_date":  dateValue(lot.AcquisitionDate),
		})
	}
	return out
}

func fundSummaryToMap(fs *portfolio.FundSummary) map[string]interface{} {
	return map[string]interface{}{
		"fund_id":           fs.FundID,
		"fund_name":         fs.FundName,
		"fund_type":         fs.FundType,
		"units_held":        fs.UnitsHeld.String(),
		"invested":          fs.Invested.String(),
		"current_value":     fs.CurrentValue.String(),
		"profit":            fs.Profit.String(),
		"lifetime_profit":   fs.LifetimeProfit.String(),
		"realized_proceeds": fs.RealizedProceeds.String(),
		"total_bought":      fs.TotalBought.String(),
		"absolute_return":   nullDecimal(fs.AbsoluteReturn),
		"xirr":              nullDecimal(fs.XIRR),
		"latest_nav":        nullDecimal(fs.LatestNAV),
		"latest_nav_date":   optionalDateValue(fs.LatestNAVDate),
		"stale":             fs.Stale,
		"oversold":          fs.Oversold,
		"open_lots":         lotsToList(fs.OpenLots),
	}
}

func summaryToMap(s *portfolio.Summary) map[string]interface{} {
	funds := make([]interface{}, 0, len(s.Funds))
	for i := range s.Funds {
		funds = append(funds, fundSummaryToMap(&s.Funds[i]))
	}
	return map[string]interface{}{
		"funds":           funds,
		"total_invested":  s.TotalInvested.String(),
		"current_value":   s.CurrentValue.String(),
		"profit":          s.Profit.String(),
		"lifetime_profit": s.LifetimeProfit.String(),
		"absolute_return": nullDecimal(s.AbsoluteReturn),
		"xirr":            nullDecimal(s.XIRR),
		"as_of":           dateValue(s.AsOf),
	}
}

// returnsToList keeps window display order
func returnsToList(r domain.Returns) []interface{} {
	out := make([]interface{}, 0, len(r))
	for _, wr := range r {
		out = append(out, map[string]interface{}{
			"window": wr.Key,
			"value":  nullDecimal(wr.Value),
		})
	}
	return out
}

func bucketToMap(b capitalgains.Bucket) map[string]interface{} {
	return map[string]interface{}{
		"gross_gain":      b.GrossGain.String(),
		"gross_loss":      b.GrossLoss.String(),
		"gain":            b.Gain.String(),
		"taxable_gain":    b.TaxableGain.String(),
		"tax":             b.Tax.String(),
		"exemption_limit": b.ExemptionLimit.String(),
		"rate_percent":    b.RatePercent.String(),
	}
}

func capitalGainsToMap(r capitalgains.Result) map[string]interface{} {
	if !r.Applicable {
		return map[string]interface{}{
			"applicable": false,
			"reason":     r.Reason,
		}
	}
	return map[string]interface{}{
		"applicable": true,
		"sell_date":  dateValue(r.SellDate),
		"sell_price": r.SellPrice.String(),
		"short_term": bucketToMap(r.ShortTerm),
		"long_term":  bucketToMap(r.LongTerm),
	}
}

func simulationToMap(r *simulator.Result) map[string]interface{} {
	rows := make([]interface{}, 0, len(r.MonthlyGrowth))
	for _, row := range r.MonthlyGrowth {
		rows = append(rows, map[string]interface{}{
			"date":            dateValue(row.Date),
			"invested":        row.Invested.String(),
			"corpus":          row.Corpus.String(),
			"profit":          row.Profit.String(),
			"units":           row.Units.String(),
			"sip_amount":      nullDecimal(row.SIPAmount),
			"absolute_return": nullDecimal(row.AbsoluteReturn),
		})
	}
	return map[string]interface{}{
		"fund_id":         r.FundID,
		"mode":            string(r.Mode),
		"amount_invested": r.AmountInvested.String(),
		"units":           r.Units.String(),
		"corpus_now":      r.CorpusNow.String(),
		"expected_profit": r.ExpectedProfit.String(),
		"absolute_return": nullDecimal(r.AbsoluteReturn),
		"xirr":            nullDecimal(r.XIRR),
		"valuation_date":  dateValue(r.ValuationDate),
		"monthly_growth":  rows,
		"capital_gains":   capitalGainsToMap(r.CapitalGains),
	}
}

func transactionToMap(tx *domain.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"id":            tx.ID.String(),
		"user_id":       tx.UserID.String(),
		"account_id":    tx.AccountID.String(),
		"fund_id":       tx.FundID,
		"type":          string(tx.Type),
		"units":         tx.Units.String(),
		"price":         tx.Price.String(),
		"amount":        tx.Amount().String(),
		"transacted_at": dateValue(tx.TransactedAt),
		"seq":           strconv.FormatInt(tx.Seq, 10),
	}
}

func invalidArgument(field string, err error) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf("invalid %s: %v", field, err))
}
