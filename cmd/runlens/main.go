package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ormasoftchile/runlens/pkg/cases"
	"github.com/ormasoftchile/runlens/pkg/diagram"
	"github.com/ormasoftchile/runlens/pkg/events"
	"github.com/ormasoftchile/runlens/pkg/launcher"
	"github.com/ormasoftchile/runlens/pkg/monitor"
	"github.com/ormasoftchile/runlens/pkg/projection"
	"github.com/ormasoftchile/runlens/pkg/registry"
	"github.com/ormasoftchile/runlens/pkg/runstate"
	"github.com/ormasoftchile/runlens/pkg/trace"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		// Remove surrounding quotes
		val = strings.Trim(val, `"'`)
		// Don't overwrite existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var (
	serverURL    string
	registryPath string
)

var rootCmd = &cobra.Command{
	Use:   "runlens",
	Short: "Pipeline run monitor",
	Long:  "runlens — watch, replay and inspect decision pipeline runs streamed from a remote server.",
}

// serverBaseURL resolves the pipeline server address: flag, then
// RUNLENS_SERVER, then the default.
func serverBaseURL() string {
	if serverURL != "" {
		return serverURL
	}
	if env := os.Getenv("RUNLENS_SERVER"); env != "" {
		return env
	}
	return launcher.DefaultBaseURL
}

// loadRegistry resolves the step registry: --registry file, then
// RUNLENS_REGISTRY, then the built-in default pipeline.
func loadRegistry() (*registry.Registry, error) {
	path := registryPath
	if path == "" {
		path = os.Getenv("RUNLENS_REGISTRY")
	}
	if path == "" {
		return registry.Default(), nil
	}

	reg, errs := registry.ValidateFile(path)
	if hasValidationErrors(errs) {
		printValidationErrors(errs)
		return nil, fmt.Errorf("registry validation failed with %d error(s)", countValidationErrors(errs))
	}
	printValidationWarnings(errs)
	return reg, nil
}

// --- cases ---

var casesJSON bool

var casesCmd = &cobra.Command{
	Use:   "cases [caseId]",
	Short: "List available cases, or show one case in full",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCases,
}

func runCases(cmd *cobra.Command, args []string) error {
	client := cases.New(serverBaseURL())
	ctx := cmd.Context()

	if len(args) == 1 {
		detail, err := client.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if casesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(detail)
		}
		fmt.Printf("Case %s\n", detail.ID)
		fmt.Printf("  Customer: %s\n", detail.CustomerName)
		fmt.Printf("  Flight:   %s\n", detail.FlightNumber)
		if detail.Scenario != "" {
			fmt.Printf("  Scenario: %s\n", detail.Scenario)
		}
		printSection := func(name string, m map[string]any) {
			if len(m) == 0 {
				return
			}
			fmt.Printf("\n  %s:\n", name)
			for k, v := range m {
				fmt.Printf("    %-24s %v\n", k, v)
			}
		}
		printSection("Customer profile", detail.Customer)
		printSection("Flight", detail.Flight)
		printSection("Inventory", detail.Inventory)
		printSection("Scores", detail.Scores)
		return nil
	}

	list, err := client.List(ctx)
	if err != nil {
		return err
	}
	if casesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Println("No cases available.")
		return nil
	}
	fmt.Printf("Found %d case(s):\n\n", len(list))
	for _, c := range list {
		fmt.Printf("  %-12s  %-24s  %-10s  %s\n", c.ID, c.CustomerName, c.FlightNumber, c.Scenario)
	}
	return nil
}

// --- run ---

var (
	runApproval bool
	runRecord   string
	runTimeout  string
	runDiagram  string
	runQuiet    bool
)

var runCmd = &cobra.Command{
	Use:   "run [caseId]",
	Short: "Run a case headlessly, printing each event as it arrives",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	caseID := args[0]

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if runTimeout != "" {
		d, err := time.ParseDuration(runTimeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", runTimeout, err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	opts := []monitor.Option{}
	if !runQuiet {
		opts = append(opts, monitor.WithOnApply(func(snap runstate.Snapshot, evt *events.Event) {
			fmt.Println(eventLine(evt, reg))
		}))
	}
	if runRecord != "" {
		rec, err := trace.NewFileRecorder(runRecord)
		if err != nil {
			return err
		}
		defer rec.Close()
		opts = append(opts, monitor.WithRecorder(rec))
	}

	mon := monitor.New(launcher.New(serverBaseURL()), opts...)

	fmt.Printf("Case: %s\n", caseID)
	fmt.Printf("Server: %s\n", serverBaseURL())

	var snap runstate.Snapshot
	var runErr error
	if runApproval {
		snap, runErr = mon.WatchApproval(ctx, caseID)
	} else {
		snap, runErr = mon.Watch(ctx, caseID)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "  ✗ run did not finish cleanly: %v\n", runErr)
	}
	if n := mon.StaleDiscarded(); n > 0 {
		fmt.Fprintf(os.Stderr, "  ⚠ discarded %d stale event(s)\n", n)
	}

	board := projection.BuildBoard(&snap, reg)
	if runDiagram != "none" {
		out, err := diagram.Generate(board, diagram.Format(runDiagram))
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(out)
	}
	printOutcome(board)

	if runErr != nil || snap.OverallStatus == runstate.OverallFailed {
		os.Exit(1)
	}
	return nil
}

// eventLine renders one arriving event as a single progress line.
func eventLine(evt *events.Event, reg *registry.Registry) string {
	name := evt.StepID
	if name != "" {
		name = reg.DisplayName(evt.StepID)
	}
	switch evt.Type {
	case events.KindRunStarted:
		return fmt.Sprintf("  ▶ run started (%d steps)", evt.TotalSteps)
	case events.KindPlannerStarted:
		return "  ◉ planner thinking..."
	case events.KindPlannerDecided:
		return fmt.Sprintf("  ◉ planner selected %d step(s): %s", len(evt.Plan), strings.Join(evt.Plan, ", "))
	case events.KindStepStarted:
		return fmt.Sprintf("  ▶ %s", name)
	case events.KindStepCompleted:
		line := fmt.Sprintf("  ✓ %s (%dms)", name, evt.DurationMs)
		if evt.Summary != "" {
			line += "  " + evt.Summary
		}
		return line
	case events.KindStepSkipped:
		line := fmt.Sprintf("  ⊘ %s skipped", name)
		if evt.Reason != "" {
			line += ": " + evt.Reason
		}
		return line
	case events.KindRunCompleted:
		return "  ✓ run complete"
	case events.KindRunFailed:
		return fmt.Sprintf("  ✗ run failed: %s", evt.Message)
	}
	return fmt.Sprintf("  ? %s", evt.Type)
}

func printOutcome(b *projection.Board) {
	switch {
	case b.Outcome != nil && b.Outcome.PendingApproval:
		fmt.Printf("\nOutcome: pending approval (request %s)\n", b.Outcome.ApprovalRequestID)
		for _, r := range b.Outcome.EscalationReasons {
			fmt.Printf("  ⚠ %s\n", r)
		}
	case b.Outcome != nil && b.Outcome.ShouldOffer && b.Outcome.Offer != nil:
		o := b.Outcome.Offer
		fmt.Printf("\nOutcome: OFFER %s", o.OfferID)
		if o.DiscountPct > 0 {
			fmt.Printf(" (%.0f%% off)", o.DiscountPct)
		}
		fmt.Println()
		if o.Headline != "" {
			fmt.Printf("  %s\n", o.Headline)
		}
	case b.Outcome != nil:
		fmt.Println("\nOutcome: no offer")
		if r := firstNonEmpty(b.Outcome.SuppressionReason, b.Outcome.Reason); r != "" {
			fmt.Printf("  %s\n", r)
		}
	case b.FailureMessage != "":
		fmt.Printf("\nRun failed: %s\n", b.FailureMessage)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// --- registry ---

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Step registry operations",
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate [registry.yaml]",
	Short: "Validate a registry YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryValidate,
}

func runRegistryValidate(cmd *cobra.Command, args []string) error {
	reg, errs := registry.ValidateFile(args[0])
	printValidationWarnings(errs)
	if hasValidationErrors(errs) {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", countValidationErrors(errs))
		printValidationErrors(errs)
		return fmt.Errorf("validation failed with %d error(s)", countValidationErrors(errs))
	}
	fmt.Printf("✓ %s is valid (%d steps, %d phases, %d gates)\n",
		reg.Name, len(reg.Steps), len(reg.Phases), len(reg.Gates))
	return nil
}

// hasValidationErrors returns true if any error (non-warning) is present.
func hasValidationErrors(errs []*registry.ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

// countValidationErrors counts non-warning errors.
func countValidationErrors(errs []*registry.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	return n
}

func printValidationErrors(errs []*registry.ValidationError) {
	i := 0
	for _, e := range errs {
		if e.Severity == "warning" {
			continue
		}
		i++
		fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
		}
	}
}

// printValidationWarnings prints any warnings to stderr.
func printValidationWarnings(errs []*registry.ValidationError) {
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
		}
	}
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:       "export [registry|events]",
	Short:     "Export a JSON Schema to stdout",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"registry", "events"},
	RunE:      runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	switch args[0] {
	case "registry":
		data, err = registry.GenerateJSONSchema()
	case "events":
		data, err = events.GenerateJSONSchema()
	default:
		return fmt.Errorf("unknown schema %q: use 'registry' or 'events'", args[0])
	}
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	// Pretty-print the JSON
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		// fallback to raw
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("runlens %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Pipeline server base URL (overrides RUNLENS_SERVER)")
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "Step registry YAML file (overrides RUNLENS_REGISTRY; default: built-in pipeline)")

	// cases flags
	casesCmd.Flags().BoolVar(&casesJSON, "json", false, "Output as JSON")

	// run flags
	runCmd.Flags().BoolVar(&runApproval, "approval", false, "Use the human-approval run variant")
	runCmd.Flags().StringVar(&runRecord, "record", "", "Record the event stream to this JSONL trace file")
	runCmd.Flags().StringVar(&runTimeout, "timeout", "", "Abort the run after this duration (e.g. 2m)")
	runCmd.Flags().StringVar(&runDiagram, "format", "ascii", "Final board rendering: ascii, mermaid, or none")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress per-event progress lines")

	// schema subcommands
	schemaCmd.AddCommand(schemaExportCmd)

	// registry subcommands
	registryCmd.AddCommand(registryValidateCmd)

	// root subcommands
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(registryCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
