package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/loanrisk/internal/domain"
)

const sampleCSV = `Loan_ID,Gender,Married,Dependents,Education,Self_Employed,ApplicantIncome,CoapplicantIncome,LoanAmount,Loan_Amount_Term,Credit_History,Property_Area,Loan_Status
LP001002,Male,No,0,Graduate,No,5849,0,,360,1,Urban,Y
LP001003,Male,Yes,1,Graduate,No,4583,1508,128,360,1,Rural,N
LP001005,Male,Yes,0,Graduate,Yes,3000,0,66,360,1,Urban,Y
LP001006,Male,Yes,0,Not Graduate,No,2583,2358,120,360,1,Urban,Y
LP001008,,No,0,Graduate,No,6000,0,141,360,1,Urban,Y
LP001011,Male,Yes,2,Graduate,Yes,5417,4196,267,360,0,Urban,N
`

func TestReadLoanCSV(t *testing.T) {
	apps, skipped, err := readLoanCSV(strings.NewReader(sampleCSV), 0)
	require.NoError(t, err)
	require.Len(t, apps, 4, "complete rows")
	assert.Equal(t, 2, skipped)

	first := apps[0]
	assert.Equal(t, "LP001003", first.LoanID)
	assert.False(t, first.Approved)
	assert.Equal(t, 1508.0, first.Application.CoapplicantIncome)
	assert.Equal(t, "Rural", first.Application.PropertyArea)
}

func TestReadLoanCSVLimit(t *testing.T) {
	apps, _, err := readLoanCSV(strings.NewReader(sampleCSV), 2)
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestReadLoanCSVMissingColumn(t *testing.T) {
	_, _, err := readLoanCSV(strings.NewReader("Loan_ID,Gender\nLP1,Male\n"), 0)
	assert.Error(t, err)
}

func TestMetricsScores(t *testing.T) {
	m := &Metrics{}
	m.Record(true, true)
	m.Record(true, true)
	m.Record(true, false)
	m.Record(false, true)
	m.Record(false, false)

	accuracy, precision, recall, f1 := m.Scores()
	assert.InDelta(t, 0.6, accuracy, 1e-9)
	assert.InDelta(t, 2.0/3.0, precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, f1, 1e-9)
}

func TestMetricsScoresEmpty(t *testing.T) {
	accuracy, precision, recall, f1 := (&Metrics{}).Scores()
	assert.Equal(t, []float64{0, 0, 0, 0}, []float64{accuracy, precision, recall, f1})
}

func TestRunBenchmark(t *testing.T) {
	// Approve whenever credit history is good.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var app domain.Application
		if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if app.ApplicantIncome == 3000 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(PredictResponse{Approved: app.CreditHistory == 1})
	}))
	defer server.Close()

	apps, _, err := readLoanCSV(strings.NewReader(sampleCSV), 0)
	require.NoError(t, err)

	m := runBenchmark(context.Background(), apps, server.URL, 3, false)
	assert.Equal(t, int64(4), m.TotalProcessed.Load())
	assert.Equal(t, int64(1), m.TotalErrors.Load())
	// LP001003 N->Y, LP001006 Y->Y, LP001011 N->N
	assert.Equal(t, int64(1), m.TruePositives.Load(), "tp")
	assert.Equal(t, int64(1), m.FalsePositives.Load(), "fp")
	assert.Equal(t, int64(1), m.TrueNegatives.Load(), "tn")
}
