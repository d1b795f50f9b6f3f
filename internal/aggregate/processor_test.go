package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorsync/pkg/models"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func at(d time.Duration) *time.Time {
	t := fixedNow.Add(d)
	return &t
}

func days(n float64) time.Duration {
	return time.Duration(n * float64(24*time.Hour))
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newProcessor(vendors []models.Vendor, invoices []models.Invoice) *Processor {
	return New(vendors, invoices, nil, WithClock(clock))
}

func TestKPIs(t *testing.T) {
	vendors := []models.Vendor{{ID: "v1", Name: "Acme"}, {ID: "v2", Name: "Globex"}}
	invoices := []models.Invoice{
		{ID: "i1", VendorID: "v1", TotalAmount: 100, DueDate: at(days(5)), Status: "paid"},
		{ID: "i2", VendorID: "v1", TotalAmount: 300, DueDate: at(days(45))},
		{ID: "i3", VendorID: "v2", TotalAmount: 200, DueDate: at(-days(2)), PaidDate: at(-days(1))},
		{ID: "i4", VendorID: "v2", TotalAmount: 50},
		{ID: "i5", VendorID: "v2", TotalAmount: 1000, EarlyPayDiscount: 2, DueDate: at(days(30))},
	}

	kpis := newProcessor(vendors, invoices).KPIs()

	assert.Equal(t, 2, kpis.TotalVendors)
	assert.Equal(t, 3, kpis.ActiveContracts)
	assert.Equal(t, 2, kpis.UpcomingPayments, "due in 5 days and exactly 30 days")
	assert.Equal(t, 20.0, kpis.ProjectedSavings)
	assert.Equal(t, 0.0, kpis.TotalSpend)
	assert.Equal(t, 150.0, kpis.AverageInvoiceAmount)
}

func TestActiveContractsNeverExceedsInvoiceCount(t *testing.T) {
	invoices := []models.Invoice{
		{ID: "i1", VendorID: "v1", DueDate: at(days(1))},
		{ID: "i2", VendorID: "v1", DueDate: at(-days(1))},
		{ID: "i3", VendorID: "v1"},
		{ID: "i4", VendorID: "v1", DueDate: at(0)},
	}

	kpis := newProcessor(nil, invoices).KPIs()
	assert.LessOrEqual(t, kpis.ActiveContracts, len(invoices))
	assert.Equal(t, 1, kpis.ActiveContracts)
}

func TestAverageWithNoPaidInvoices(t *testing.T) {
	kpis := newProcessor(nil, []models.Invoice{{ID: "i1", VendorID: "v1", TotalAmount: 10}}).KPIs()
	assert.Equal(t, 0.0, kpis.AverageInvoiceAmount)
}

func TestScenarioDDiscountContributesToSavings(t *testing.T) {
	invoices := []models.Invoice{{ID: "i1", VendorID: "v1", TotalAmount: 1000, EarlyPayDiscount: 2}}
	assert.Equal(t, 20.0, newProcessor(nil, invoices).KPIs().ProjectedSavings)
}

func TestVendorsSortedBySpendAndSumMatches(t *testing.T) {
	vendors := []models.Vendor{
		{ID: "v1", Name: "Small"},
		{ID: "v2", Name: "Large"},
		{ID: "v3", Name: "Empty"},
		{ID: "v4", Name: "Medium"},
	}
	invoices := []models.Invoice{
		{ID: "i1", VendorID: "v1", TotalAmount: 10.25, Status: "paid"},
		{ID: "i2", VendorID: "v2", TotalAmount: 5000.10, Status: "paid"},
		{ID: "i3", VendorID: "v2", TotalAmount: 7000, PaidDate: at(-days(3))},
		{ID: "i4", VendorID: "v2", TotalAmount: 999, Status: "pending"},
		{ID: "i5", VendorID: "v4", TotalAmount: 800.33, Status: "paid"},
	}

	rows := newProcessor(vendors, invoices).Vendors()
	require.Len(t, rows, 4)

	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].Spend, rows[i].Spend)
	}
	assert.Equal(t, "Large", rows[0].Name)

	var sumRows, sumPaid float64
	for _, r := range rows {
		sumRows += r.Spend
	}
	for _, inv := range invoices {
		if inv.IsPaid() {
			sumPaid += inv.TotalAmount
		}
	}
	assert.InDelta(t, sumPaid, sumRows, 0.001)
}

func TestVendorsTiesKeepInputOrder(t *testing.T) {
	vendors := []models.Vendor{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}}
	rows := newProcessor(vendors, nil).Vendors()
	assert.Equal(t, []string{"A", "B", "C"}, []string{rows[0].Name, rows[1].Name, rows[2].Name})
}

func TestComplianceAndScore(t *testing.T) {
	vendors := []models.Vendor{
		{ID: "late", Name: "Late"},
		{ID: "disc", Name: "Disc"},
		{ID: "ok", Name: "Ok"},
		{ID: "big", Name: "Big"},
	}
	invoices := []models.Invoice{
		{ID: "1", VendorID: "late", LateFee: 1.5},
		{ID: "2", VendorID: "late", EarlyPayDiscount: 2},
		{ID: "3", VendorID: "disc", EarlyPayDiscount: 2},
		{ID: "4", VendorID: "ok"},
	}
	for i := 0; i < 10; i++ {
		invoices = append(invoices, models.Invoice{ID: "b" + string(rune('0'+i)), VendorID: "big", TotalAmount: 2000, Status: "paid"})
	}

	byName := map[string]models.VendorSummary{}
	for _, r := range newProcessor(vendors, invoices).Vendors() {
		byName[r.Name] = r
	}

	assert.Equal(t, models.ComplianceLateFeeRisk, byName["Late"].Compliance)
	assert.Equal(t, 75+4-15-5, byName["Late"].Score)

	assert.Equal(t, models.ComplianceDiscountAvailable, byName["Disc"].Compliance)
	assert.Equal(t, 75+2+10-5, byName["Disc"].Score)

	assert.Equal(t, models.ComplianceOK, byName["Ok"].Compliance)
	assert.Equal(t, 75+2-5, byName["Ok"].Score)

	assert.Equal(t, 20000.0, byName["Big"].Spend)
	assert.Equal(t, 100, byName["Big"].Score, "75+15+10 clamps at 100")
}

func TestNextPayBuckets(t *testing.T) {
	vendors := []models.Vendor{
		{ID: "none", Name: "None"},
		{ID: "past", Name: "Past"},
		{ID: "soon", Name: "Soon"},
		{ID: "later", Name: "Later"},
		{ID: "paid", Name: "Paid"},
	}
	invoices := []models.Invoice{
		{ID: "1", VendorID: "past", DueDate: at(-days(3))},
		{ID: "2", VendorID: "soon", DueDate: at(days(2.5))},
		{ID: "3", VendorID: "soon", DueDate: at(days(20))},
		{ID: "4", VendorID: "later", DueDate: date(2025, 7, 4)},
		{ID: "5", VendorID: "paid", DueDate: at(days(1)), Status: "paid"},
	}

	byName := map[string]models.VendorSummary{}
	for _, r := range newProcessor(vendors, invoices).Vendors() {
		byName[r.Name] = r
	}

	assert.Equal(t, models.NextPayNone, byName["None"].NextPay)
	assert.Equal(t, models.NextPayNoFuturePayments, byName["Past"].NextPay)
	assert.Equal(t, models.NextPayDueSoon, byName["Soon"].NextPay)
	assert.Equal(t, "Jul 4", byName["Later"].NextPay)
	assert.Equal(t, models.NextPayNoFuturePayments, byName["Paid"].NextPay)
}

func TestVendorMockFieldsUnavailable(t *testing.T) {
	rows := newProcessor([]models.Vendor{{ID: "v1", Name: "Acme"}}, nil).Vendors()
	assert.Nil(t, rows[0].PriceDelta)
	assert.Nil(t, rows[0].OnTime)
}

func TestLastInvoiceDate(t *testing.T) {
	invoices := []models.Invoice{
		{ID: "1", VendorID: "v1", Date: date(2025, 3, 1)},
		{ID: "2", VendorID: "v1", Date: date(2025, 5, 9)},
		{ID: "3", VendorID: "v1", Date: date(2025, 4, 2)},
	}
	rows := newProcessor([]models.Vendor{{ID: "v1", Name: "Acme"}}, invoices).Vendors()
	assert.Equal(t, "2025-05-09", rows[0].LastInvoiceDate)
}

func TestScenarioAFutureInvoiceRaisesNoAlert(t *testing.T) {
	vendors := []models.Vendor{{ID: "v1", Name: "Acme"}}
	invoices := []models.Invoice{
		{ID: "i1", VendorID: "v1", TotalAmount: 108.72, Status: "pending", DueDate: at(days(8))},
	}
	p := newProcessor(vendors, invoices)

	assert.Empty(t, p.Alerts())

	events := p.CalendarEvents(nil, nil)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventFuture, events[0].Type)
	assert.Equal(t, 1, p.KPIs().UpcomingPayments)
}

func TestScenarioBOverdueAlert(t *testing.T) {
	vendors := []models.Vendor{{ID: "v1", Name: "Acme"}}
	invoices := []models.Invoice{
		{ID: "i1", VendorID: "v1", TotalAmount: 50, Status: "pending", DueDate: at(-days(3))},
	}

	alerts := newProcessor(vendors, invoices).Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertDanger, alerts[0].Level)
	assert.Equal(t, "Acme has 1 overdue payment(s)", alerts[0].Text)
	assert.Equal(t, "v1", alerts[0].VendorID)
}

func TestAlertsStackPerVendor(t *testing.T) {
	vendors := []models.Vendor{{ID: "v1", Name: "Acme"}, {ID: "v2", Name: "Globex"}}
	invoices := []models.Invoice{
		{ID: "i1", VendorID: "v1", LateFee: 2, DueDate: at(days(2))},
		{ID: "i2", VendorID: "v1", DueDate: at(-days(1))},
		{ID: "i3", VendorID: "v1", DueDate: at(-days(10)), Status: "paid"},
		{ID: "i4", VendorID: "v2", EarlyPayDiscount: 2, DueDate: at(days(20))},
	}

	alerts := newProcessor(vendors, invoices).Alerts()

	var texts []string
	for _, a := range alerts {
		texts = append(texts, a.Level+": "+a.Text)
	}
	assert.ElementsMatch(t, []string{
		"warn: Acme has late fee terms - review payment schedule",
		"warn: Payment due soon for Acme",
		"danger: Acme has 1 overdue payment(s)",
		"ok: Early-pay discount available: Globex",
	}, texts)
}

func TestAlertsLinkByIDNotName(t *testing.T) {
	vendors := []models.Vendor{{ID: "v1", Name: "Twin"}, {ID: "v2", Name: "Twin"}}
	invoices := []models.Invoice{{ID: "i1", VendorID: "v2", DueDate: at(-days(1))}}

	alerts := newProcessor(vendors, invoices).Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "v2", alerts[0].VendorID)
}

func TestRenewalsAreExplicitlyUnavailable(t *testing.T) {
	renewals := newProcessor([]models.Vendor{{ID: "v1", Name: "Acme"}}, nil).Renewals()
	require.Len(t, renewals, 1)
	assert.Equal(t, "Acme Contract", renewals[0].Contract)
	assert.Equal(t, models.RenewalUnavailable, renewals[0].Status)
	assert.Nil(t, renewals[0].Renews)
}

func TestCalendarMergesSameDay(t *testing.T) {
	vendors := []models.Vendor{{ID: "v1", Name: "Acme"}, {ID: "v2", Name: "Globex Corporation"}}
	invoices := []models.Invoice{
		{ID: "i1", VendorID: "v2", DueDate: date(2025, 6, 20)},
		{ID: "i2", VendorID: "v1", DueDate: date(2025, 6, 20), EarlyPayDiscount: 1},
		{ID: "i3", VendorID: "v1", DueDate: date(2025, 6, 3)},
		{ID: "i4", VendorID: "v9", VendorName: "Initech", DueDate: date(2025, 7, 20)},
		{ID: "i5", VendorID: "v8", DueDate: date(2025, 6, 25)},
		{ID: "i6", VendorID: "v1"},
	}

	year, month := 2025, 6
	events := newProcessor(vendors, invoices).CalendarEvents(&year, &month)
	require.Len(t, events, 3)

	seen := map[int]bool{}
	for _, e := range events {
		assert.False(t, seen[e.Day], "duplicate day %d", e.Day)
		seen[e.Day] = true
	}

	assert.Equal(t, 3, events[0].Day)
	assert.Equal(t, models.EventDue, events[0].Type)

	assert.Equal(t, 20, events[1].Day)
	assert.Equal(t, "Globex C..., Acme", events[1].Label)
	assert.Equal(t, "Globex Corporation, Acme", events[1].FullVendorName)
	assert.Equal(t, models.EventSoon, events[1].Type)

	assert.Equal(t, 25, events[2].Day)
	assert.Equal(t, "Vendor v8", events[2].FullVendorName)
	assert.Equal(t, models.EventFuture, events[2].Type)
}

func TestCalendarUnfilteredUsesEmbeddedName(t *testing.T) {
	invoices := []models.Invoice{{ID: "i1", VendorID: "v9", VendorName: "Initech", DueDate: date(2025, 7, 20), EarlyPayDiscount: 3}}
	events := newProcessor(nil, invoices).CalendarEvents(nil, nil)
	require.Len(t, events, 1)
	assert.Equal(t, "Initech", events[0].Label)
	assert.Equal(t, models.EventSave, events[0].Type)
}

func TestSavingsSeriesPrefersPerformance(t *testing.T) {
	perf := []models.PerformancePoint{{Month: "2025-01", TotalAmount: 10}, {Month: "2025-02", TotalAmount: 20}}
	series := New(nil, nil, perf, WithClock(clock)).SavingsSeries()
	assert.Equal(t, []float64{10, 20}, series.Points)
	assert.False(t, series.Synthetic)
}

func TestSavingsSeriesSyntheticIsDeterministic(t *testing.T) {
	invoices := []models.Invoice{{ID: "i1", VendorID: "v1", TotalAmount: 60000, EarlyPayDiscount: 2}}
	p := newProcessor(nil, invoices)

	first := p.SavingsSeries()
	second := p.SavingsSeries()
	assert.True(t, first.Synthetic)
	require.Len(t, first.Points, 12)
	assert.Equal(t, first.Points, second.Points)
	assert.Equal(t, 100.0, first.Points[0], "base is 1200/12 and sin(0) is 0")
}

func TestMonthlyTotals(t *testing.T) {
	invoices := []models.Invoice{
		{ID: "1", VendorID: "v1", TotalAmount: 100, Status: "paid", PaidDate: date(2025, 6, 2)},
		{ID: "2", VendorID: "v1", TotalAmount: 100, PaidAmount: 95.4, Status: "paid", PaidDate: date(2025, 6, 10)},
		{ID: "3", VendorID: "v1", TotalAmount: 40, Status: "paid", Date: date(2024, 7, 31)},
		{ID: "4", VendorID: "v1", TotalAmount: 500, Date: date(2025, 5, 1)},
		{ID: "5", VendorID: "v1", TotalAmount: 70, Status: "paid", PaidDate: date(2024, 6, 30)},
	}

	totals := newProcessor(nil, invoices).MonthlyTotals()
	require.Len(t, totals.Months, 12)
	require.Len(t, totals.Amounts, 12)

	assert.Equal(t, "Jul 24", totals.Months[0])
	assert.Equal(t, "Jun 25", totals.Months[11])
	assert.Equal(t, 40.0, totals.Amounts[0])
	assert.Equal(t, 195.0, totals.Amounts[11])
	assert.Equal(t, 0.0, totals.Amounts[10], "unpaid invoice excluded")
}

func TestPaymentsOpenTabSortsByDueDate(t *testing.T) {
	invoices := []models.Invoice{
		{ID: "late", VendorID: "v1", DueDate: date(2025, 8, 1)},
		{ID: "none", VendorID: "v1"},
		{ID: "soon", VendorID: "v1", DueDate: date(2025, 6, 20)},
		{ID: "paid", VendorID: "v1", DueDate: date(2025, 6, 1), Status: "paid"},
	}

	open, err := newProcessor(nil, invoices).Payments(TabOpen, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"soon", "late", "none"}, ids(open))
}

func TestPaymentsHistoryTabSortsByPaidDate(t *testing.T) {
	invoices := []models.Invoice{
		{ID: "old", VendorID: "v1", PaidDate: date(2025, 1, 3)},
		{ID: "undated", VendorID: "v1", Status: "paid"},
		{ID: "recent", VendorID: "v1", PaidDate: date(2025, 6, 1)},
		{ID: "open", VendorID: "v1"},
	}

	history, err := newProcessor(nil, invoices).Payments(TabHistory, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"recent", "old", "undated"}, ids(history))
}

func TestPaymentsQueryMatchesVendorNameAndNumber(t *testing.T) {
	vendors := []models.Vendor{{ID: "v1", Name: "Acme"}, {ID: "v2", Name: "Globex"}}
	invoices := []models.Invoice{
		{ID: "a", VendorID: "v1", InvoiceNumber: "INV-1"},
		{ID: "b", VendorID: "v2", InvoiceNumber: "INV-2"},
	}
	p := newProcessor(vendors, invoices)

	byName, err := p.Payments(TabOpen, "  GLOBEX ")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(byName))

	byNumber, err := p.Payments(TabOpen, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(byNumber))

	_, err = p.Payments("archive", "")
	assert.Error(t, err)
}

func ids(invoices []models.Invoice) []string {
	out := make([]string, len(invoices))
	for i, inv := range invoices {
		out[i] = inv.ID
	}
	return out
}
