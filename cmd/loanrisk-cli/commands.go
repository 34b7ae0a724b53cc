package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/loanrisk/internal/api"
	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/scoring"
)

func (c *cli) predictCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score an application and print the decision",
		Long: `Score an application through POST /api/predict.

The application is read as JSON from --file, or from stdin when --file is
"-" or omitted. Numeric attributes may be numbers or numeric strings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _, err := c.readApplication(file)
			if err != nil {
				return err
			}
			resp, err := c.do(cmd.Context(), http.MethodPost, "/api/predict", body)
			if err != nil {
				return err
			}
			if c.raw(resp) {
				return nil
			}

			var p api.PredictResponse
			if err := decodeResponse(resp, &p); err != nil {
				return err
			}
			decision := "REJECTED"
			if p.Approved {
				decision = "APPROVED"
			}
			fmt.Fprintf(c.stdout, "Decision:      %s\n", decision)
			fmt.Fprintf(c.stdout, "Application:   %s\n", p.ApplicationID)
			fmt.Fprintf(c.stdout, "Probability:   %.4f\n", p.ApprovalProbability)
			fmt.Fprintf(c.stdout, "Risk score:    %.2f\n", p.RiskScore)
			fmt.Fprintf(c.stdout, "Interest rate: %.2f%%\n", p.SuggestedInterestRate)
			fmt.Fprintf(c.stdout, "Fraud flag:    %t\n", p.FraudFlag)
			if len(p.Diagnostics.FraudRules) > 0 {
				fmt.Fprintf(c.stdout, "Fraud rules:   %s\n", strings.Join(p.Diagnostics.FraudRules, ", "))
			}
			if len(p.Diagnostics.FallbackFields) > 0 {
				fmt.Fprintf(c.stdout, "Unseen values: %s\n", strings.Join(p.Diagnostics.FallbackFields, ", "))
			}
			fmt.Fprintf(c.stdout, "\n%s\n", p.Explanation)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "application JSON file (- for stdin)")
	return cmd
}

func (c *cli) submitCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue an application for the async worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _, err := c.readApplication(file)
			if err != nil {
				return err
			}
			resp, err := c.do(cmd.Context(), http.MethodPost, "/api/applications", body)
			if err != nil {
				return err
			}
			if c.raw(resp) {
				return nil
			}
			var s api.SubmitResponse
			if err := decodeResponse(resp, &s); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "status=%s request_id=%s trace_id=%s\n", s.Status, s.RequestID, s.TraceID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "application JSON file (- for stdin)")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent decisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			resp, err := c.do(cmd.Context(), http.MethodGet, "/api/applications?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			if c.raw(resp) {
				return nil
			}

			var decisions []*domain.Decision
			if err := decodeResponse(resp, &decisions); err != nil {
				return err
			}
			if len(decisions) == 0 {
				fmt.Fprintln(c.stdout, "no decisions recorded")
				return nil
			}

			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIMESTAMP\tAPPROVED\tPROB\tRISK\tRATE\tFRAUD")
			for _, d := range decisions {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%.3f\t%.1f\t%.2f\t%t\n",
					d.ID,
					d.CreatedAt.Format("2006-01-02 15:04:05"),
					d.Approved,
					d.ApprovalProbability,
					d.RiskScore,
					d.SuggestedInterestRate,
					d.FraudFlag,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultListLimit, "maximum number of decisions")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show one stored decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.do(cmd.Context(), http.MethodGet, "/api/applications/"+url.PathEscape(args[0]), nil)
			if err != nil {
				return err
			}
			if c.raw(resp) {
				return nil
			}
			var d domain.Decision
			if err := decodeResponse(resp, &d); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "ID:            %s\n", d.ID)
			fmt.Fprintf(c.stdout, "Timestamp:     %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(c.stdout, "Approved:      %t\n", d.Approved)
			fmt.Fprintf(c.stdout, "Probability:   %.4f\n", d.ApprovalProbability)
			fmt.Fprintf(c.stdout, "Risk score:    %.2f\n", d.RiskScore)
			fmt.Fprintf(c.stdout, "Interest rate: %.2f%%\n", d.SuggestedInterestRate)
			fmt.Fprintf(c.stdout, "Fraud flag:    %t\n", d.FraudFlag)
			if d.ModelVersion != "" {
				fmt.Fprintf(c.stdout, "Model:         %s\n", d.ModelVersion)
			}
			fmt.Fprintf(c.stdout, "\n%s\n", d.Explanation)
			return nil
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.do(cmd.Context(), http.MethodGet, "/api/stats", nil)
			if err != nil {
				return err
			}
			if c.raw(resp) {
				return nil
			}
			var s domain.Stats
			if err := decodeResponse(resp, &s); err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, "Loanrisk Statistics")
			fmt.Fprintln(c.stdout, strings.Repeat("=", 40))
			fmt.Fprintf(c.stdout, "  %-20s %d\n", "Total:", s.TotalApplications)
			fmt.Fprintf(c.stdout, "  %-20s %d\n", "Approved:", s.Approved)
			fmt.Fprintf(c.stdout, "  %-20s %d\n", "Rejected:", s.Rejected)
			fmt.Fprintf(c.stdout, "  %-20s %.1f%%\n", "Approval rate:", s.ApprovalRate)
			fmt.Fprintf(c.stdout, "  %-20s %.2f\n", "Average risk:", s.AverageRiskScore)
			return nil
		},
	}
}

func (c *cli) modelCmd() *cobra.Command {
	var reload bool
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show the loaded model artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			method, path := http.MethodGet, "/api/model"
			if reload {
				method, path = http.MethodPost, "/api/model/reload"
			}
			resp, err := c.do(cmd.Context(), method, path, nil)
			if err != nil {
				return err
			}
			if c.raw(resp) {
				return nil
			}
			var m api.ModelResponse
			if err := decodeResponse(resp, &m); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Version:     %s\n", m.Version)
			fmt.Fprintf(c.stdout, "Model:       %s\n", m.Model)
			fmt.Fprintf(c.stdout, "Artifacts:   %s\n", m.ArtifactDir)
			fmt.Fprintf(c.stdout, "Classes:     %s\n", strings.Join(m.Classes, ", "))
			fmt.Fprintf(c.stdout, "Features:    %d\n", len(m.Features))
			fmt.Fprintf(c.stdout, "Fraud rules: %s\n", strings.Join(m.FraudRules, ", "))
			if m.TrainedAt != nil {
				fmt.Fprintf(c.stdout, "Trained at:  %s\n", m.TrainedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(c.stdout, "Loaded at:   %s\n", m.LoadedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reload, "reload", false, "reload the artifacts before printing")
	return cmd
}

// encodeOutput is the --json form of the encode command.
type encodeOutput struct {
	Features map[string]float64  `json:"features"`
	Vector   []float64           `json:"vector"`
	Result   *encodeAssessment   `json:"assessment,omitempty"`
	Diag     scoring.Diagnostics `json:"diagnostics"`
}

type encodeAssessment struct {
	Approved     bool    `json:"approved"`
	Probability  float64 `json:"approval_probability"`
	RiskScore    float64 `json:"risk_score"`
	InterestRate float64 `json:"suggested_interest_rate"`
	FraudFlag    bool    `json:"fraud_flag"`
	Explanation  string  `json:"explanation"`
}

func (c *cli) encodeCmd() *cobra.Command {
	var (
		file      string
		artifacts string
		evaluate  bool
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode an application offline against an artifact bundle",
		Long: `Load the artifact bundle locally and print the feature vector an
application encodes to, including the categorical columns that fell back to
the neutral code. With --evaluate the full pipeline runs as well; nothing is
persisted and no server is contacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, app, err := c.readApplication(file)
			if err != nil {
				return err
			}

			sc, err := scoring.Loader{
				Dir:     artifacts,
				Options: scoring.OptionsFromConfig(domain.DefaultConfig()),
			}.Load(cmd.Context())
			if err != nil {
				return err
			}

			vec, encDiag := sc.Encoder.Encode(app)
			out := encodeOutput{
				Features: make(map[string]float64, len(vec)),
				Vector:   vec,
				Diag: scoring.Diagnostics{
					FallbackFields: encDiag.FallbackFields(),
					ModelVersion:   sc.Version,
				},
			}
			names := sc.Encoder.FeatureNames()
			for i, name := range names {
				out.Features[name] = vec[i]
			}

			if evaluate {
				a, diag, err := scoring.Evaluate(cmd.Context(), sc, app)
				if err != nil {
					return err
				}
				out.Diag = diag
				out.Result = &encodeAssessment{
					Approved:     a.Approved,
					Probability:  a.Probability,
					RiskScore:    a.RiskScore,
					InterestRate: a.InterestRate,
					FraudFlag:    a.FraudFlag,
					Explanation:  a.Explanation,
				}
			}

			if c.json {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			fallback := make(map[string]bool, len(out.Diag.FallbackFields))
			for _, f := range out.Diag.FallbackFields {
				fallback[f] = true
			}
			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FEATURE\tVALUE\tNOTE")
			for i, name := range names {
				note := ""
				if fallback[name] {
					note = "unseen value, neutral code"
				}
				fmt.Fprintf(tw, "%s\t%g\t%s\n", name, vec[i], note)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "\nModel version: %s\n", sc.Version)
			if out.Result != nil {
				fmt.Fprintf(c.stdout, "Approved: %t  probability=%.4f  risk=%.2f  rate=%.2f%%  fraud=%t\n",
					out.Result.Approved, out.Result.Probability, out.Result.RiskScore,
					out.Result.InterestRate, out.Result.FraudFlag)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "application JSON file (- for stdin)")
	cmd.Flags().StringVarP(&artifacts, "artifacts", "a", envOrDefault("LOANRISK_MODEL_DIR", "./models"), "artifact bundle directory")
	cmd.Flags().BoolVar(&evaluate, "evaluate", false, "run the full scoring pipeline")
	return cmd
}

// readApplication reads application JSON from path or stdin and validates
// it locally. The original bytes are returned for forwarding.
func (c *cli) readApplication(path string) ([]byte, domain.Application, error) {
	var (
		body []byte
		err  error
	)
	if path == "" || path == "-" {
		body, err = io.ReadAll(c.stdin)
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, domain.Application{}, fmt.Errorf("failed to read application: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, domain.Application{}, fmt.Errorf("empty application input")
	}

	var req domain.ApplicationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, domain.Application{}, fmt.Errorf("invalid application JSON: %w", err)
	}
	app, err := req.ToApplication()
	if err != nil {
		return nil, domain.Application{}, err
	}
	return body, app, nil
}
