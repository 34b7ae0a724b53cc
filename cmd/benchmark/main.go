// Benchmark tool for testing Loanrisk against a labelled loan dataset.
//
// Usage:
//
//	go run cmd/benchmark/main.go -csv /path/to/loan_data.csv -url http://localhost:8080
//
// This tool:
//  1. Reads loan applications with their historical Loan_Status labels
//  2. Sends each application to POST /api/predict
//  3. Compares the approval decision with the label
//  4. Calculates accuracy, precision, recall, F1-score and a confusion matrix
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opensource-finance/loanrisk/internal/domain"
)

// LabelledApplication is one dataset row.
type LabelledApplication struct {
	LoanID      string
	Application domain.Application
	Approved    bool
}

// PredictResponse is the subset of the API response the benchmark reads.
type PredictResponse struct {
	Approved            bool    `json:"approved"`
	ApprovalProbability float64 `json:"approval_probability"`
	RiskScore           float64 `json:"risk_score"`
	FraudFlag           bool    `json:"fraud_flag"`
}

// Metrics tracks benchmark results. Positive means approved.
type Metrics struct {
	TruePositives  atomic.Int64 // Approved and predicted approved
	FalsePositives atomic.Int64 // Rejected but predicted approved
	TrueNegatives  atomic.Int64 // Rejected and predicted rejected
	FalseNegatives atomic.Int64 // Approved but predicted rejected

	TotalProcessed atomic.Int64
	TotalErrors    atomic.Int64
	FraudFlagged   atomic.Int64

	ProcessingTimeMs atomic.Int64
}

// Record adds one prediction to the confusion matrix.
func (m *Metrics) Record(actual, predicted bool) {
	switch {
	case predicted && actual:
		m.TruePositives.Add(1)
	case predicted && !actual:
		m.FalsePositives.Add(1)
	case !predicted && !actual:
		m.TrueNegatives.Add(1)
	default:
		m.FalseNegatives.Add(1)
	}
}

// Scores derives the summary ratios from the confusion matrix.
func (m *Metrics) Scores() (accuracy, precision, recall, f1 float64) {
	tp := float64(m.TruePositives.Load())
	fp := float64(m.FalsePositives.Load())
	tn := float64(m.TrueNegatives.Load())
	fn := float64(m.FalseNegatives.Load())

	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}
	if total := tp + tn + fp + fn; total > 0 {
		accuracy = (tp + tn) / total
	}
	return accuracy, precision, recall, f1
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labelled loan CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Loanrisk base URL")
	limit := flag.Int("limit", 0, "Maximum applications to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each application result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/loan_data.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        LOANRISK BENCHMARK - Labelled Loan Applications        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:      %s\n", *csvPath)
	fmt.Printf("Loanrisk URL:  %s\n", *baseURL)
	fmt.Printf("Workers:       %d\n", *workers)
	fmt.Printf("Limit:         %d\n", *limit)
	fmt.Println()

	ctx := context.Background()

	if err := checkHealth(ctx, *baseURL); err != nil {
		fmt.Printf("ERROR: Loanrisk not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Loanrisk is running:")
		fmt.Println("  go run cmd/loanrisk/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Loanrisk is healthy")

	file, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to open CSV: %v\n", err)
		os.Exit(1)
	}
	apps, skipped, err := readLoanCSV(file, *limit)
	file.Close()
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	if len(apps) == 0 {
		fmt.Println("ERROR: no complete rows in dataset")
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d applications (%d incomplete rows skipped)\n", len(apps), skipped)

	approvedCount := 0
	for _, a := range apps {
		if a.Approved {
			approvedCount++
		}
	}
	fmt.Printf("  - Approved:  %d (%.2f%%)\n", approvedCount, 100*float64(approvedCount)/float64(len(apps)))
	fmt.Printf("  - Rejected:  %d (%.2f%%)\n", len(apps)-approvedCount, 100*float64(len(apps)-approvedCount)/float64(len(apps)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(ctx, apps, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/ready", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("not ready: status %d", resp.StatusCode)
	}
	return nil
}

var requiredColumns = []string{
	"loan_id",
	"gender", "married", "dependents", "education", "self_employed", "property_area",
	"applicantincome", "coapplicantincome", "loanamount", "loan_amount_term", "credit_history",
	"loan_status",
}

// readLoanCSV reads the training-format loan dataset. Rows with a missing
// attribute are skipped and counted.
func readLoanCSV(r io.Reader, limit int) ([]LabelledApplication, int, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", col)
		}
	}

	var (
		apps    []LabelledApplication
		skipped int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		get := func(col string) string {
			return strings.TrimSpace(record[colIndex[col]])
		}
		complete := true
		num := func(col string) float64 {
			v, err := strconv.ParseFloat(get(col), 64)
			if err != nil {
				complete = false
			}
			return v
		}
		str := func(col string) string {
			v := get(col)
			if v == "" {
				complete = false
			}
			return v
		}

		app := LabelledApplication{
			LoanID: get("loan_id"),
			Application: domain.Application{
				Gender:            str("gender"),
				Married:           str("married"),
				Dependents:        str("dependents"),
				Education:         str("education"),
				SelfEmployed:      str("self_employed"),
				PropertyArea:      str("property_area"),
				ApplicantIncome:   num("applicantincome"),
				CoapplicantIncome: num("coapplicantincome"),
				LoanAmount:        num("loanamount"),
				LoanAmountTerm:    num("loan_amount_term"),
				CreditHistory:     num("credit_history"),
			},
			Approved: strings.EqualFold(get("loan_status"), "Y"),
		}
		if !complete || app.Application.Validate() != nil {
			skipped++
			continue
		}

		apps = append(apps, app)
		if limit > 0 && len(apps) >= limit {
			break
		}
	}

	return apps, skipped, nil
}

func runBenchmark(ctx context.Context, apps []LabelledApplication, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}
	client := &http.Client{Timeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(numWorkers, 1))

	for _, app := range apps {
		app := app
		g.Go(func() error {
			start := time.Now()
			result, err := predict(ctx, client, baseURL, app.Application)
			metrics.ProcessingTimeMs.Add(time.Since(start).Milliseconds())
			metrics.TotalProcessed.Add(1)

			if err != nil {
				metrics.TotalErrors.Add(1)
				if verbose {
					fmt.Printf("ERROR: %s -> %v\n", app.LoanID, err)
				}
				return nil
			}

			metrics.Record(app.Approved, result.Approved)
			if result.FraudFlag {
				metrics.FraudFlagged.Add(1)
			}

			if verbose {
				status := "✓"
				if result.Approved != app.Approved {
					status = "✗"
				}
				fmt.Printf("%s %-10s | Income: %8.0f | Loan: %6.0f | Credit: %.0f | Actual: %-5v | Predicted: %-5v (p=%.2f, risk=%.1f)\n",
					status,
					app.LoanID,
					app.Application.ApplicantIncome,
					app.Application.LoanAmount,
					app.Application.CreditHistory,
					app.Approved,
					result.Approved,
					result.ApprovalProbability,
					result.RiskScore,
				)
			}
			return nil
		})
	}

	// Workers never return errors; failed requests are counted instead.
	_ = g.Wait()
	return metrics
}

func predict(ctx context.Context, client *http.Client, baseURL string, app domain.Application) (*PredictResponse, error) {
	body, err := json.Marshal(app)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	tp, fp := m.TruePositives.Load(), m.FalsePositives.Load()
	tn, fn := m.TrueNegatives.Load(), m.FalseNegatives.Load()

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed.Load())
	fmt.Printf("   Labelled Y:       %d\n", tp+fn)
	fmt.Printf("   Labelled N:       %d\n", tn+fp)
	fmt.Printf("   Fraud Flagged:    %d\n", m.FraudFlagged.Load())
	fmt.Printf("   Errors:           %d\n", m.TotalErrors.Load())

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                 APPROVED    REJECTED")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  Y  │ %8d │ %8d │  (TP, FN)\n", tp, fn)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           N  │ %8d │ %8d │  (FP, TN)\n", fp, tn)
	fmt.Println("              └──────────┴──────────┘")

	accuracy, precision, recall, f1 := m.Scores()

	fmt.Printf("\n🎯 DECISION METRICS\n")
	fmt.Printf("   Accuracy:   %.4f  (overall correct decisions)\n", accuracy)
	fmt.Printf("   Precision:  %.4f  (of approvals, how many were repaid loans)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of approvable loans, how many we approved)\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if n := m.TotalProcessed.Load(); n > 0 {
		avgMs := float64(m.ProcessingTimeMs.Load()) / float64(n)
		rps := float64(n) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", rps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	switch {
	case accuracy >= 0.8:
		fmt.Println("   ✅ Decisions closely match historical outcomes")
	case accuracy >= 0.7:
		fmt.Println("   ⚠️  Decisions mostly match historical outcomes")
	default:
		fmt.Println("   ❌ Decisions diverge from historical outcomes, check the artifacts")
	}
	if fp > tn {
		fmt.Println("   ⚠️  More bad loans approved than rejected")
	}

	fmt.Println()
}
