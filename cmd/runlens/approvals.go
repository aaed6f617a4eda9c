package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/runlens/pkg/approval"
	"github.com/ormasoftchile/runlens/pkg/events"
)

var (
	approvalsJSON bool

	submitCase     string
	submitRun      string
	submitOfferID  string
	submitHeadline string
	submitDiscount float64
	submitReasons  []string
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Inspect and resolve pending approval requests",
}

var approvalsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Place a proposed offer on the approval queue",
	RunE:  runApprovalsSubmit,
}

var approvalsShowCmd = &cobra.Command{
	Use:   "show [requestId]",
	Short: "Show one pending approval request",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprovalsShow,
}

var approvalsResolveCmd = &cobra.Command{
	Use:       "resolve [requestId] [approve|reject]",
	Short:     "Resolve a pending approval request",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"approve", "reject"},
	RunE:      runApprovalsResolve,
}

func runApprovalsSubmit(cmd *cobra.Command, args []string) error {
	if submitCase == "" {
		return fmt.Errorf("--case is required")
	}
	if submitOfferID == "" {
		return fmt.Errorf("--offer-id is required")
	}

	req := approval.PendingApproval{
		CaseID: submitCase,
		RunID:  submitRun,
		ProposedOffer: &events.Offer{
			OfferID:     submitOfferID,
			Headline:    submitHeadline,
			DiscountPct: submitDiscount,
		},
		EscalationReasons: submitReasons,
	}

	client := approval.New(serverBaseURL())
	stored, err := client.Submit(cmd.Context(), req)
	if err != nil {
		return err
	}

	if approvalsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stored)
	}

	fmt.Printf("✓ submitted approval request %s for case %s\n", stored.ID, stored.CaseID)
	return nil
}

func runApprovalsShow(cmd *cobra.Command, args []string) error {
	client := approval.New(serverBaseURL())
	pending, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if approvalsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pending)
	}

	fmt.Printf("Approval request %s\n", pending.ID)
	fmt.Printf("  Case:      %s\n", pending.CaseID)
	fmt.Printf("  Run:       %s\n", pending.RunID)
	if !pending.SubmittedAt.IsZero() {
		fmt.Printf("  Submitted: %s\n", pending.SubmittedAt.Format(time.RFC3339))
	}
	if o := pending.ProposedOffer; o != nil {
		fmt.Printf("  Proposed offer: %s", o.OfferID)
		if o.DiscountPct > 0 {
			fmt.Printf(" (%.0f%% off)", o.DiscountPct)
		}
		fmt.Println()
		if o.Headline != "" {
			fmt.Printf("    %s\n", o.Headline)
		}
	}
	if len(pending.EscalationReasons) > 0 {
		fmt.Printf("\n  Escalation reasons (%d):\n", len(pending.EscalationReasons))
		for _, r := range pending.EscalationReasons {
			fmt.Printf("    ⚠ %s\n", r)
		}
	}
	return nil
}

func runApprovalsResolve(cmd *cobra.Command, args []string) error {
	id, decision := args[0], args[1]
	if decision != string(approval.DecisionApprove) && decision != string(approval.DecisionReject) {
		return fmt.Errorf("unknown decision %q: use 'approve' or 'reject'", decision)
	}

	client := approval.New(serverBaseURL())
	outcome, err := client.Resolve(cmd.Context(), id, approval.Decision(decision))
	if err != nil {
		return err
	}

	if approvalsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	switch {
	case outcome == nil:
		fmt.Printf("✓ %s resolved: %s\n", id, decision)
	case outcome.ShouldOffer && outcome.Offer != nil:
		fmt.Printf("✓ %s approved: offer %s released\n", id, outcome.Offer.OfferID)
	default:
		fmt.Printf("✓ %s resolved: no offer\n", id)
		if r := firstNonEmpty(outcome.SuppressionReason, outcome.Reason); r != "" {
			fmt.Printf("  %s\n", r)
		}
	}
	return nil
}

func init() {
	approvalsCmd.PersistentFlags().BoolVar(&approvalsJSON, "json", false, "Output as JSON")
	approvalsSubmitCmd.Flags().StringVar(&submitCase, "case", "", "Case the proposed offer belongs to (required)")
	approvalsSubmitCmd.Flags().StringVar(&submitRun, "run", "", "Run that produced the proposed offer")
	approvalsSubmitCmd.Flags().StringVar(&submitOfferID, "offer-id", "", "Identifier of the proposed offer (required)")
	approvalsSubmitCmd.Flags().StringVar(&submitHeadline, "headline", "", "Customer-facing offer headline")
	approvalsSubmitCmd.Flags().Float64Var(&submitDiscount, "discount", 0, "Discount percentage of the proposed offer")
	approvalsSubmitCmd.Flags().StringSliceVar(&submitReasons, "reason", nil, "Escalation reason (repeatable)")
	approvalsCmd.AddCommand(approvalsSubmitCmd)
	approvalsCmd.AddCommand(approvalsShowCmd)
	approvalsCmd.AddCommand(approvalsResolveCmd)
	rootCmd.AddCommand(approvalsCmd)
}
