package privacy

// BudgetTolerance exposes budgetTolerance to the external privacy_test package.
const BudgetTolerance = budgetTolerance
