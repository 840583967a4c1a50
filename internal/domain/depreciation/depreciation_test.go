package depreciation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"setflow/internal/core/apperror"
	"setflow/internal/core/types"
)

func money(s string) types.Money { return types.MustMoney(s) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSettings_Validate(t *testing.T) {
	ok := Settings{Method: StraightLine, Years: 5, ResidualValueType: ResidualFixed, ResidualValue: 100}
	assert.NoError(t, ok.Validate())

	tests := []struct {
		name  string
		mut   func(*Settings)
		field string
	}{
		{"method", func(s *Settings) { s.Method = "sum-of-years" }, "depreciation.method"},
		{"years", func(s *Settings) { s.Years = 0 }, "depreciation.years"},
		{"years too long", func(s *Settings) { s.Years = MaxYears + 1 }, "depreciation.years"},
		{"residual type", func(s *Settings) { s.ResidualValueType = "ratio" }, "depreciation.residualValueType"},
		{"negative", func(s *Settings) { s.ResidualValue = -1 }, "depreciation.residualValue"},
		{"percent over 100", func(s *Settings) {
			s.ResidualValueType = ResidualPercentage
			s.ResidualValue = 101
		}, "depreciation.residualValue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ok
			tt.mut(&s)
			err := s.Validate()
			require.Error(t, err)
			ae, _ := apperror.AsAppError(err)
			require.NotNil(t, ae)
			assert.Equal(t, tt.field, ae.Details["field"])
		})
	}
}

func TestResidual(t *testing.T) {
	pct := Settings{Method: StraightLine, Years: 3, ResidualValueType: ResidualPercentage, ResidualValue: 10}
	assert.True(t, pct.Residual(money("1234.56")).Equal(money("123.46")))

	fixed := Settings{Method: StraightLine, Years: 3, ResidualValueType: ResidualFixed, ResidualValue: 500}
	assert.True(t, fixed.Residual(money("2000")).Equal(money("500")))
	assert.True(t, fixed.Residual(money("300")).Equal(money("300")), "capped at cost")
}

func TestSchedule_StraightLine(t *testing.T) {
	s := Settings{Method: StraightLine, Years: 3, ResidualValueType: ResidualFixed, ResidualValue: 100}
	rows := s.Schedule(money("1000"), day(2024, 1, 1))
	require.Len(t, rows, 3)

	assert.True(t, rows[0].Expense.Equal(money("300")))
	assert.True(t, rows[1].Expense.Equal(money("300")))
	assert.True(t, rows[2].Expense.Equal(money("300")))
	assert.True(t, rows[2].Closing.Equal(money("100")))
	assert.Equal(t, day(2024, 1, 1), rows[0].From)
	assert.Equal(t, day(2024, 12, 31), rows[0].To)
	assert.Equal(t, day(2026, 1, 1), rows[2].From)
}

func TestSchedule_StraightLineRounding(t *testing.T) {
	s := Settings{Method: StraightLine, Years: 3, ResidualValueType: ResidualFixed, ResidualValue: 0}
	rows := s.Schedule(money("1000"), day(2024, 1, 1))

	assert.True(t, rows[0].Expense.Equal(money("333.33")))
	assert.True(t, rows[1].Expense.Equal(money("333.33")))
	assert.True(t, rows[2].Expense.Equal(money("333.34")), "last year absorbs rounding")
	assert.True(t, rows[2].Closing.IsZero())
}

func TestSchedule_DecliningBalance(t *testing.T) {
	s := Settings{Method: DecliningBalance, Years: 4, ResidualValueType: ResidualFixed, ResidualValue: 100}
	rows := s.Schedule(money("1000"), day(2024, 3, 15))
	require.Len(t, rows, 4)

	// rate 50%: 1000 -> 500 -> 250 -> 125 -> 100
	want := []string{"500", "250", "125", "25"}
	for i, w := range want {
		assert.True(t, rows[i].Expense.Equal(money(w)), "year %d: %s", i+1, rows[i].Expense)
	}
	assert.True(t, rows[3].Closing.Equal(money("100")))
}

func TestSchedule_DecliningBalanceStopsAtResidual(t *testing.T) {
	s := Settings{Method: DecliningBalance, Years: 5, ResidualValueType: ResidualPercentage, ResidualValue: 30}
	rows := s.Schedule(money("1000"), day(2024, 1, 1))

	// rate 40%: 1000 -> 600 -> 360 -> 300 (clipped) -> 300 -> 300
	assert.True(t, rows[0].Expense.Equal(money("400")))
	assert.True(t, rows[1].Expense.Equal(money("240")))
	assert.True(t, rows[2].Expense.Equal(money("60")))
	assert.True(t, rows[3].Expense.IsZero())
	assert.True(t, rows[4].Expense.IsZero())
	for _, r := range rows {
		assert.True(t, r.Closing.GreaterThanOrEqual(money("300")))
	}
}

func TestSchedule_ClampsStoredYears(t *testing.T) {
	s := Settings{Method: StraightLine, Years: 1 << 40, ResidualValueType: ResidualFixed}
	rows := s.Schedule(money("1000"), day(2024, 1, 1))
	require.Len(t, rows, MaxYears)
	assert.True(t, rows[MaxYears-1].Closing.IsZero())

	book := s.BookValue(money("1000"), day(2024, 1, 1), day(2025, 1, 1))
	assert.True(t, book.Equal(money("990")), book.String())

	zero := Settings{Method: DecliningBalance, ResidualValueType: ResidualFixed}
	assert.Len(t, zero.Schedule(money("1000"), day(2024, 1, 1)), 1)
}

func TestBookValue(t *testing.T) {
	s := Settings{Method: StraightLine, Years: 2, ResidualValueType: ResidualFixed, ResidualValue: 0}
	bought := day(2023, 1, 1)
	cost := money("730")

	assert.True(t, s.BookValue(cost, bought, day(2022, 6, 1)).Equal(cost), "before purchase")
	assert.True(t, s.BookValue(cost, bought, bought).Equal(cost))
	// 2023 has 365 days, expense 365 per year -> 1 per day
	assert.True(t, s.BookValue(cost, bought, day(2023, 1, 11)).Equal(money("720")))
	assert.True(t, s.BookValue(cost, bought, day(2024, 1, 1)).Equal(money("365")))
	assert.True(t, s.BookValue(cost, bought, day(2030, 1, 1)).IsZero())
}

func TestBookValue_DecliningProratesCurrentYear(t *testing.T) {
	s := Settings{Method: DecliningBalance, Years: 4, ResidualValueType: ResidualFixed, ResidualValue: 100}
	bought := day(2023, 1, 1)

	// second year opens at 500 with an expense of 250; half of 2024 (leap) is 183 days
	bv := s.BookValue(money("1000"), bought, day(2024, 7, 2))
	assert.True(t, bv.Equal(money("375")), bv.String())
}

func TestSummarize(t *testing.T) {
	s := Settings{Method: StraightLine, Years: 3, ResidualValueType: ResidualFixed, ResidualValue: 100}
	sum := s.Summarize(money("1000"), day(2024, 1, 1), day(2025, 1, 1))

	assert.True(t, sum.BookValue.Equal(money("700")))
	assert.True(t, sum.Accumulated.Equal(money("300")))
	assert.True(t, sum.Residual.Equal(money("100")))
	assert.Len(t, sum.Schedule, 3)
}

func TestColumn_JSON(t *testing.T) {
	var c Column
	require.NoError(t, c.Scan([]byte(`{"method":"straight-line","years":5,"residualValueType":"percentage","residualValue":10}`)))
	require.NotNil(t, c.Settings)
	assert.Equal(t, StraightLine, c.Method)

	require.NoError(t, c.Scan(nil))
	assert.Nil(t, c.Settings)
	v, err := c.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
