// Package depreciation computes schedules and book values from a
// category's depreciation settings.
package depreciation

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"setflow/internal/core/apperror"
	"setflow/internal/core/types"
)

type Method string

const (
	DecliningBalance Method = "declining-balance"
	StraightLine     Method = "straight-line"
)

type ResidualType string

const (
	ResidualFixed      ResidualType = "fixed"
	ResidualPercentage ResidualType = "percentage"
)

// MaxYears bounds the useful life a category may declare.
const MaxYears = 100

// Settings is stored per category as JSONB.
type Settings struct {
	Method            Method       `json:"method"`
	Years             int          `json:"years"`
	ResidualValueType ResidualType `json:"residualValueType"`
	ResidualValue     float64      `json:"residualValue"`
}

func (s Settings) Validate() error {
	switch s.Method {
	case DecliningBalance, StraightLine:
	default:
		return invalid("method", fmt.Sprintf("method must be %s or %s", DecliningBalance, StraightLine))
	}
	if s.Years < 1 {
		return invalid("years", "years must be at least 1")
	}
	if s.Years > MaxYears {
		return invalid("years", fmt.Sprintf("years cannot exceed %d", MaxYears))
	}
	switch s.ResidualValueType {
	case ResidualFixed, ResidualPercentage:
	default:
		return invalid("residualValueType", fmt.Sprintf("residual value type must be %s or %s", ResidualFixed, ResidualPercentage))
	}
	if s.ResidualValue < 0 {
		return invalid("residualValue", "residual value cannot be negative")
	}
	if s.ResidualValueType == ResidualPercentage && s.ResidualValue > 100 {
		return invalid("residualValue", "residual percentage cannot exceed 100")
	}
	return nil
}

func invalid(field, msg string) error {
	return apperror.NewValidation(msg).WithDetail("field", "depreciation."+field)
}

// Residual is the value an asset of this cost keeps at the end of its life.
func (s Settings) Residual(cost types.Money) types.Money {
	v := decimal.NewFromFloat(s.ResidualValue)
	if s.ResidualValueType == ResidualPercentage {
		v = cost.Mul(v).Div(decimal.NewFromInt(100))
	}
	v = types.RoundMoney(v)
	return types.MaxMoney(decimal.Zero, types.MinMoney(v, cost))
}

// Row is one year of a schedule. Year 1 starts on the purchase date.
type Row struct {
	Year    int         `json:"year"`
	From    time.Time   `json:"from"`
	To      time.Time   `json:"to"`
	Opening types.Money `json:"opening"`
	Expense types.Money `json:"expense"`
	Closing types.Money `json:"closing"`
}

// life is Years clamped to [1, MaxYears]. Settings stored before the
// upper bound existed are read through it.
func (s Settings) life() int {
	return min(max(s.Years, 1), MaxYears)
}

// Schedule lists the yearly depreciation from cost down to the residual.
func (s Settings) Schedule(cost types.Money, purchased time.Time) []Row {
	years := s.life()
	residual := s.Residual(cost)
	rows := make([]Row, 0, years)
	opening := types.RoundMoney(cost)
	depreciable := opening.Sub(residual)
	annual := types.RoundMoney(depreciable.Div(decimal.NewFromInt(int64(years))))
	rate := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(years)))

	for y := 1; y <= years; y++ {
		var expense types.Money
		switch {
		case y == years:
			expense = opening.Sub(residual)
		case s.Method == StraightLine:
			expense = annual
		default:
			expense = types.RoundMoney(opening.Mul(rate))
		}
		expense = types.MinMoney(expense, opening.Sub(residual))
		expense = types.MaxMoney(expense, decimal.Zero)

		closing := opening.Sub(expense)
		rows = append(rows, Row{
			Year:    y,
			From:    purchased.AddDate(y-1, 0, 0),
			To:      purchased.AddDate(y, 0, -1),
			Opening: opening,
			Expense: expense,
			Closing: closing,
		})
		opening = closing
	}
	return rows
}

// BookValue is the carrying amount at asOf. Within a year the expense
// accrues linearly by day.
func (s Settings) BookValue(cost types.Money, purchased, asOf time.Time) types.Money {
	cost = types.RoundMoney(cost)
	if !asOf.After(purchased) {
		return cost
	}
	rows := s.Schedule(cost, purchased)
	for _, r := range rows {
		next := r.To.AddDate(0, 0, 1)
		if asOf.Before(next) {
			total := next.Sub(r.From).Hours() / 24
			elapsed := asOf.Sub(r.From).Hours() / 24
			portion := decimal.NewFromFloat(elapsed / total)
			return types.RoundMoney(r.Opening.Sub(r.Expense.Mul(portion)))
		}
	}
	return s.Residual(cost)
}

// Summary is the depreciation view of one asset.
type Summary struct {
	Settings    Settings    `json:"settings"`
	Cost        types.Money `json:"cost"`
	Residual    types.Money `json:"residual"`
	BookValue   types.Money `json:"bookValue"`
	Accumulated types.Money `json:"accumulated"`
	AsOf        time.Time   `json:"asOf"`
	Schedule    []Row       `json:"schedule"`
}

func (s Settings) Summarize(cost types.Money, purchased, asOf time.Time) Summary {
	book := s.BookValue(cost, purchased, asOf)
	return Summary{
		Settings:    s,
		Cost:        types.RoundMoney(cost),
		Residual:    s.Residual(cost),
		BookValue:   book,
		Accumulated: types.RoundMoney(cost).Sub(book),
		AsOf:        asOf,
		Schedule:    s.Schedule(cost, purchased),
	}
}

// Column stores optional settings as nullable JSONB.
type Column struct {
	*Settings
}

func (c *Column) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		c.Settings = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("depreciation: cannot scan %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		c.Settings = nil
		return nil
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("depreciation: %w", err)
	}
	c.Settings = &s
	return nil
}

func (c Column) Value() (driver.Value, error) {
	if c.Settings == nil {
		return nil, nil
	}
	return json.Marshal(c.Settings)
}

func (c Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Settings)
}

func (c *Column) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		c.Settings = nil
		return nil
	}
	var s Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	c.Settings = &s
	return nil
}
