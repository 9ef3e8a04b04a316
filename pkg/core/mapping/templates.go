package mapping

import "pitchsheet/pkg/core/edgar"

// MappingVersion identifies the revision of the template tables below.
// Bump it whenever an alias list changes.
const MappingVersion = "1.0.0"

// Statement sheet names.
const (
	IncomeStatementName = "Income_Statement"
	BalanceSheetName    = "Balance_Sheet"
	CashFlowName        = "Cash_Flow"
)

// Canonical line items referenced by the derivation and metrics code.
const (
	LineRevenue         = "Revenue"
	LineGrossProfit     = "Gross Profit"
	LineOperatingIncome = "Operating Income"
	LineNetIncome       = "Net Income"
	LineDilutedShares   = "Diluted Shares Outstanding"
	LineDilutedEPS      = "Diluted EPS"
	LineTotalEquity     = "Total Equity"
	LineLongTermDebt    = "Long-term Debt"
	LineOperatingCF     = "Net Cash from Operations"
	LineCapex           = "Capital Expenditures"
	LineFreeCashFlow    = "Free Cash Flow"
)

// LineItem maps one canonical row to its accepted XBRL tags, in priority order.
// Sign is presentation metadata (-1 for costs/outflows); values are never flipped.
type LineItem struct {
	Name    string
	Tags    []string
	Unit    string
	Sign    int
	Derived bool
}

// Template is an ordered statement definition.
type Template struct {
	Name  string
	Items []LineItem
}

// =============================================================================
// INCOME STATEMENT
// =============================================================================

var incomeStatement = Template{
	Name: IncomeStatementName,
	Items: []LineItem{
		{Name: LineRevenue, Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"Revenues",
			"RevenueFromContractWithCustomerExcludingAssessedTax",
			"RevenueFromContractWithCustomerIncludingAssessedTax",
			"SalesRevenueNet",
			"SalesRevenueGoodsNet",
			"SalesRevenueServicesNet",
			"NetRevenues",
		}},
		{Name: "Cost of Revenue", Unit: edgar.UnitUSD, Sign: -1, Tags: []string{
			"CostOfRevenue",
			"CostOfGoodsAndServicesSold",
			"CostOfGoodsSold",
			"CostOfGoodsAndServiceExcludingDepreciationDepletionAndAmortization",
		}},
		{Name: LineGrossProfit, Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"GrossProfit",
		}},
		{Name: "Research & Development", Unit: edgar.UnitUSD, Sign: -1, Tags: []string{
			"ResearchAndDevelopmentExpense",
			"ResearchAndDevelopmentExpenseExcludingAcquiredInProcessCost",
		}},
		{Name: "Selling, General & Administrative", Unit: edgar.UnitUSD, Sign: -1, Tags: []string{
			"SellingGeneralAndAdministrativeExpense",
			"SellingAndMarketingExpense",
			"GeneralAndAdministrativeExpense",
		}},
		{Name: LineOperatingIncome, Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"OperatingIncomeLoss",
			"IncomeLossFromContinuingOperationsBeforeIncomeTaxesMinorityInterestAndIncomeLossFromEquityMethodInvestments",
		}},
		{Name: "Interest Expense", Unit: edgar.UnitUSD, Sign: -1, Tags: []string{
			"InterestExpense",
			"InterestExpenseDebt",
			"InterestIncomeExpenseNet",
		}},
		{Name: "Pretax Income", Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest",
			"IncomeLossFromContinuingOperationsBeforeIncomeTaxesDomestic",
			"IncomeLossFromContinuingOperationsBeforeIncomeTaxesMinorityInterestAndIncomeLossFromEquityMethodInvestments",
		}},
		{Name: LineNetIncome, Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"NetIncomeLoss",
			"NetIncomeLossAvailableToCommonStockholdersBasic",
			"ProfitLoss",
		}},
		{Name: LineDilutedShares, Unit: edgar.UnitShares, Sign: 1, Tags: []string{
			"WeightedAverageNumberOfDilutedSharesOutstanding",
			"CommonStockSharesOutstanding",
			"WeightedAverageNumberOfShareOutstandingBasicAndDiluted",
		}},
		{Name: LineDilutedEPS, Unit: edgar.UnitUSDPerShares, Sign: 1, Tags: []string{
			"EarningsPerShareDiluted",
			"EarningsPerShareBasicAndDiluted",
		}},
	},
}

// =============================================================================
// BALANCE SHEET (instant items)
// =============================================================================

var balanceSheet = Template{
	Name: BalanceSheetName,
	Items: []LineItem{
		{Name: "Cash & Equivalents", Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"CashAndCashEquivalentsAtCarryingValue",
			"CashCashEquivalentsAndShortTermInvestments",
			"Cash",
			"CashEquivalentsAtCarryingValue",
		}},
		{Name: "Total Current Assets", Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"AssetsCurrent",
		}},
		{Name: "Total Assets", Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"Assets",
		}},
		{Name: "Total Current Liabilities", Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"LiabilitiesCurrent",
		}},
		{Name: "Total Liabilities", Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"Liabilities",
		}},
		{Name: LineLongTermDebt, Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"LongTermDebt",
			"LongTermDebtNoncurrent",
			"LongTermDebtAndCapitalLeaseObligations",
		}},
		{Name: LineTotalEquity, Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"StockholdersEquity",
			"StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest",
		}},
	},
}

// =============================================================================
// CASH FLOW
// =============================================================================

var cashFlow = Template{
	Name: CashFlowName,
	Items: []LineItem{
		{Name: LineOperatingCF, Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"NetCashProvidedByUsedInOperatingActivities",
			"NetCashProvidedByUsedInOperatingActivitiesContinuingOperations",
		}},
		{Name: LineCapex, Unit: edgar.UnitUSD, Sign: -1, Tags: []string{
			"PaymentsToAcquirePropertyPlantAndEquipment",
			"PaymentsToAcquireProductiveAssets",
			"PaymentsForCapitalImprovements",
		}},
		// CFO - |Capex|
		{Name: LineFreeCashFlow, Unit: edgar.UnitUSD, Sign: 1, Derived: true},
		{Name: "Net Cash from Investing", Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"NetCashProvidedByUsedInInvestingActivities",
			"NetCashProvidedByUsedInInvestingActivitiesContinuingOperations",
		}},
		{Name: "Net Cash from Financing", Unit: edgar.UnitUSD, Sign: 1, Tags: []string{
			"NetCashProvidedByUsedInFinancingActivities",
			"NetCashProvidedByUsedInFinancingActivitiesContinuingOperations",
		}},
	},
}

var allTemplates = []Template{incomeStatement, balanceSheet, cashFlow}

// StatementNames returns the statement names in sheet order.
func StatementNames() []string {
	names := make([]string, len(allTemplates))
	for i, t := range allTemplates {
		names[i] = t.Name
	}
	return names
}
