package repository

// Schema definitions for the loanrisk database.
// Compatible with both SQLite and PostgreSQL.

// schemaDecisions holds one row per scoring call. Rows are append-only.
// Booleans are stored as 0/1 integers for portability.
const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    gender TEXT NOT NULL,
    married TEXT NOT NULL,
    dependents TEXT NOT NULL,
    education TEXT NOT NULL,
    self_employed TEXT NOT NULL,
    property_area TEXT NOT NULL,
    applicant_income DOUBLE PRECISION NOT NULL,
    coapplicant_income DOUBLE PRECISION NOT NULL,
    loan_amount DOUBLE PRECISION NOT NULL,
    loan_amount_term DOUBLE PRECISION NOT NULL,
    credit_history DOUBLE PRECISION NOT NULL,
    approved INTEGER NOT NULL,
    approval_probability DOUBLE PRECISION NOT NULL,
    risk_score DOUBLE PRECISION NOT NULL,
    suggested_interest_rate DOUBLE PRECISION NOT NULL,
    fraud_flag INTEGER NOT NULL,
    explanation TEXT NOT NULL,
    model_version TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_approved ON decisions(approved);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDecisions,
	}
}
