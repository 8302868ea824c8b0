package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/mlship/mlship/internal/credentials"
	"github.com/mlship/mlship/internal/pipeline"
	"github.com/mlship/mlship/internal/reporting"
	"github.com/mlship/mlship/internal/validation"
	"github.com/mlship/mlship/internal/workspace"
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [project-name | mlship.yaml]",
		Short: "Check if a project is ready to run the pipeline",
		Long: `Check if a project is ready to run the pipeline.

Performs the following checks:
  1. Config - mlship.yaml presence and schema validity
  2. Tools - the Python interpreter, formatter and git on PATH
  3. Credentials - environment variables the enabled stages need
  4. Layout - training script, requirements file and artifact directories
  5. Report links - image and link targets in an existing model report

With no arguments, uses workspace detection to find projects automatically:
  - Single-project workspace → checks that project
  - Multi-project workspace → checks ALL projects with summary table

You can also specify a project name or a config path:
  mlship check drug-classification  # by project name
  mlship check ./mlship.yaml        # by path`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runCheck,
		SilenceErrors: true,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

// --- JSON output structs ---

type checkJSONReport struct {
	Timestamp string              `json:"timestamp"`
	Projects  []projectJSONReport `json:"projects"`
}

type projectJSONReport struct {
	Name        string           `json:"name"`
	Dir         string           `json:"dir"`
	ConfigPath  string           `json:"configPath,omitempty"`
	Ready       bool             `json:"ready"`
	Config      configJSON       `json:"config"`
	Tools       []toolJSON       `json:"tools"`
	Credentials []credentialJSON `json:"credentials"`
	Layout      []layoutJSON     `json:"layout"`
	Links       *linksJSON       `json:"links,omitempty"`
	NextSteps   []string         `json:"nextSteps"`
}

type configJSON struct {
	Found  bool     `json:"found"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

type toolJSON struct {
	Name     string `json:"name"`
	Found    bool   `json:"found"`
	Required bool   `json:"required"`
	Path     string `json:"path,omitempty"`
}

type credentialJSON struct {
	EnvVar  string `json:"envVar"`
	Purpose string `json:"purpose"`
	Set     bool   `json:"set"`
	Missing bool   `json:"missing,omitempty"` // required by an enabled stage and absent
	Note    string `json:"note,omitempty"`
}

type layoutJSON struct {
	Path     string `json:"path"`
	Purpose  string `json:"purpose"`
	Found    bool   `json:"found"`
	Required bool   `json:"required"`
}

type linkIssueJSON struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

type linksJSON struct {
	Report         string          `json:"report"`
	Valid          int             `json:"valid"`
	Total          int             `json:"total"`
	Passed         bool            `json:"passed"`
	BrokenLinks    []linkIssueJSON `json:"brokenLinks,omitempty"`
	DirectoryLinks []linkIssueJSON `json:"directoryLinks,omitempty"`
	ScopeEscapes   []linkIssueJSON `json:"scopeEscapes,omitempty"`
	DeadURLs       []linkIssueJSON `json:"deadURLs,omitempty"`
}

// --- report model ---

type toolStatus struct {
	name     string
	purpose  string
	path     string
	found    bool
	required bool
}

type credentialStatus struct {
	envVar  string
	purpose string
	set     bool
	missing bool   // required by an enabled stage and absent
	note    string // warning text for optional-but-useful credentials
}

type layoutStatus struct {
	path     string // relative to the project dir
	purpose  string
	found    bool
	required bool
}

type readinessReport struct {
	projectName string
	projectDir  string
	configPath  string // empty when running on pure defaults
	configFound bool
	loadErr     string   // config load/parse failure
	schemaErrs  []string // mlship.yaml schema validation errors
	tools       []toolStatus
	creds       []credentialStatus
	layout      []layoutStatus
	reportPath  string // checked report file, empty when none exists yet
	linkResult  *reporting.LinkResult
}

// problems counts error-level findings. Zero means ready.
func (r *readinessReport) problems() int {
	n := 0
	if r.loadErr != "" {
		n++
	}
	n += len(r.schemaErrs)
	for _, t := range r.tools {
		if t.required && !t.found {
			n++
		}
	}
	for _, c := range r.creds {
		if c.missing {
			n++
		}
	}
	for _, l := range r.layout {
		if l.required && !l.found {
			n++
		}
	}
	if r.linkResult != nil && !r.linkResult.Passed() {
		n++
	}
	return n
}

func (r *readinessReport) ready() bool {
	return r.problems() == 0
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: expected text or json", format)
	}

	// If arg looks like a file path, check that config directly
	if len(args) > 0 && workspace.LooksLikePath(args[0]) {
		report := checkConfigFile(args[0])
		return outputCheckReport(cmd, format, []*readinessReport{report})
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	wsCtx, err := workspace.DetectContext(wd)
	if err != nil {
		return fmt.Errorf("detecting workspace: %w", err)
	}

	if len(args) > 0 {
		pi, err := workspace.FindProject(wsCtx, args[0])
		if err != nil {
			return err
		}
		report := checkProjectInfo(pi)
		return outputCheckReport(cmd, format, []*readinessReport{report})
	}

	var reports []*readinessReport
	switch wsCtx.Type {
	case workspace.ContextSingleProject, workspace.ContextMultiProject:
		for _, pi := range wsCtx.Projects {
			reports = append(reports, checkProjectInfo(&pi))
		}
	default:
		// No config anywhere: check the conventional layout rooted at the
		// working directory so the report says what is missing.
		spec, loadErr := pipeline.Load(wd)
		if loadErr != nil {
			return loadErr
		}
		reports = append(reports, checkReadiness(spec, "", nil))
	}

	if err := outputCheckReportMulti(cmd, format, reports); err != nil {
		return err
	}

	total := 0
	for _, r := range reports {
		total += r.problems()
	}
	if total > 0 {
		return fmt.Errorf("check found %d problem(s)", total)
	}
	return nil
}

// checkConfigFile validates and loads one config file, then inspects the
// project around it.
func checkConfigFile(path string) *readinessReport {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}

	report := &readinessReport{
		configPath: path,
		projectDir: filepath.Dir(path),
	}
	if _, err := os.Stat(path); err != nil {
		report.loadErr = fmt.Sprintf("config not found: %s", path)
		return report
	}
	report.configFound = true

	schemaErrs, err := validation.ValidatePipelineFile(path)
	if err != nil {
		report.loadErr = err.Error()
		return report
	}
	report.schemaErrs = schemaErrs

	spec, err := pipeline.LoadFile(path)
	if err != nil {
		if len(report.schemaErrs) == 0 {
			report.loadErr = err.Error()
		}
		return report
	}
	return checkReadiness(spec, path, report.schemaErrs)
}

func checkProjectInfo(pi *workspace.ProjectInfo) *readinessReport {
	if pi.ConfigPath == "" {
		// Project detected by its training script alone
		spec, err := pipeline.Load(pi.Dir)
		if err != nil {
			return &readinessReport{projectName: pi.Name, projectDir: pi.Dir, loadErr: err.Error()}
		}
		return checkReadiness(spec, "", nil)
	}
	return checkConfigFile(pi.ConfigPath)
}

// checkReadiness inspects a loaded spec: tools, credentials, layout and an
// existing report's links. Findings are collected, never returned as errors,
// so one broken area does not hide the rest.
func checkReadiness(spec *pipeline.Spec, configPath string, schemaErrs []string) *readinessReport {
	report := &readinessReport{
		projectName: spec.Name,
		projectDir:  spec.Dir,
		configPath:  configPath,
		configFound: configPath != "",
		schemaErrs:  schemaErrs,
	}

	enabled := map[string]bool{}
	for _, s := range spec.Pipeline {
		enabled[s] = true
	}

	report.tools = toolChecks(spec, enabled)
	creds, err := credentials.FromEnv()
	if err != nil {
		creds = &credentials.Credentials{}
	}
	report.creds = credentialChecks(creds, enabled)
	report.layout = layoutChecks(spec, enabled)

	// Link-check an existing report so a broken plot path surfaces before
	// the next eval run does.
	reportFile := pipeline.DefaultReportFile
	if v, ok := spec.OptionsFor(pipeline.StageEval)["report_file"].(string); ok && v != "" {
		reportFile = v
	}
	reportPath := filepath.Join(spec.ResultsDir(), reportFile)
	if _, err := os.Stat(reportPath); err == nil {
		checker := reporting.LinkChecker{ProjectDir: spec.Dir}
		if lr, err := checker.CheckFile(reportPath); err == nil {
			report.reportPath = reportPath
			report.linkResult = lr
		}
	}

	return report
}

func toolChecks(spec *pipeline.Spec, enabled map[string]bool) []toolStatus {
	formatter := pipeline.DefaultFormatter
	if v, ok := spec.OptionsFor(pipeline.StageFormat)["formatter"].(string); ok && v != "" {
		formatter = v
	}

	list := []toolStatus{
		{
			name:     spec.Project.Python,
			purpose:  "runs pip and the training script",
			required: enabled[pipeline.StageInstall] || enabled[pipeline.StageTrain],
		},
		{
			name:     formatter,
			purpose:  "formats the Python sources",
			required: enabled[pipeline.StageFormat],
		},
		{
			name:     "git",
			purpose:  "commits and pushes the results branch",
			required: enabled[pipeline.StageUpdateBranch],
		},
	}

	for i := range list {
		if path, err := exec.LookPath(list[i].name); err == nil {
			list[i].found = true
			list[i].path = path
		}
	}
	return list
}

// credentialChecks overlays stage requirements on the credential presence
// report. Values are never included, only whether each variable is set.
func credentialChecks(creds *credentials.Credentials, enabled map[string]bool) []credentialStatus {
	var out []credentialStatus
	for _, p := range creds.Report() {
		out = append(out, credentialStatus{envVar: p.EnvVar, purpose: p.Purpose, set: p.Set})
	}

	mark := func(envVar string, missing bool, note string) {
		for i := range out {
			if out[i].envVar == envVar {
				out[i].missing = missing
				out[i].note = note
				return
			}
		}
	}

	if enabled[pipeline.StageUpdateBranch] {
		if _, _, ok := creds.GitIdentity(); !ok {
			if creds.UserName == "" {
				mark("USER_NAME", true, "update-branch cannot commit without a git identity")
			}
			if creds.UserEmail == "" {
				mark("USER_EMAIL", true, "update-branch cannot commit without a git identity")
			}
		}
	}
	if enabled[pipeline.StageEval] && creds.CommentToken() == "" {
		mark("REPO_TOKEN", false, "eval skips the CI comment without it")
	}
	if enabled[pipeline.StageDeploy] && creds.HubAccessToken() == "" {
		mark("HF_TOKEN", true, "deploy cannot log in to the hub without it")
	}

	return out
}

func layoutChecks(spec *pipeline.Spec, enabled map[string]bool) []layoutStatus {
	script := pipeline.DefaultTrainScript
	if v, ok := spec.OptionsFor(pipeline.StageTrain)["script"].(string); ok && v != "" {
		script = v
	}

	list := []layoutStatus{
		{
			path:     script,
			purpose:  "training script",
			found:    workspace.FindTrainScript(spec.Dir, script) != "",
			required: enabled[pipeline.StageTrain],
		},
		{
			path:     spec.Project.Requirements,
			purpose:  "dependency manifest",
			found:    fileExists(filepath.Join(spec.Dir, spec.Project.Requirements)),
			required: enabled[pipeline.StageInstall],
		},
		{
			path:    spec.Paths.Results,
			purpose: "training results (created by train)",
			found:   dirExists(spec.ResultsDir()),
		},
		{
			path:    spec.Paths.Model,
			purpose: "serialized model (created by train)",
			found:   dirExists(spec.ModelDir()),
		},
		{
			path:    spec.Paths.App,
			purpose: "app folder deployed to the space root",
			found:   dirExists(spec.AppDir()),
		},
	}
	return list
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// generateNextSteps turns the findings into concrete suggestions.
func generateNextSteps(report *readinessReport) []string {
	var steps []string

	if !report.configFound && report.loadErr == "" {
		steps = append(steps, "Run 'mlship init' to create mlship.yaml")
	}
	if report.loadErr != "" {
		steps = append(steps, "Fix the config: "+report.loadErr)
	}
	if n := len(report.schemaErrs); n > 0 {
		steps = append(steps, fmt.Sprintf("Fix the %d schema error(s) in %s", n, filepath.Base(report.configPath)))
	}
	for _, t := range report.tools {
		if t.required && !t.found {
			steps = append(steps, fmt.Sprintf("Install %s and make sure it is on PATH", t.name))
		}
	}
	for _, c := range report.creds {
		if c.missing {
			steps = append(steps, fmt.Sprintf("Set %s (%s)", c.envVar, c.purpose))
		}
	}
	for _, l := range report.layout {
		if l.required && !l.found {
			steps = append(steps, fmt.Sprintf("Create %s (%s)", l.path, l.purpose))
		}
	}
	if report.linkResult != nil && !report.linkResult.Passed() {
		steps = append(steps, "Fix the broken links in "+report.reportPath+" or rerun 'mlship eval'")
	}
	if len(steps) == 0 {
		steps = append(steps, "Ready: run 'mlship run'")
	}
	return steps
}

// outputCheckReport dispatches to text or JSON output for a single report.
func outputCheckReport(cmd *cobra.Command, format string, reports []*readinessReport) error {
	if err := outputCheckReportMulti(cmd, format, reports); err != nil {
		return err
	}
	total := 0
	for _, r := range reports {
		total += r.problems()
	}
	if total > 0 {
		return fmt.Errorf("check found %d problem(s)", total)
	}
	return nil
}

func outputCheckReportMulti(cmd *cobra.Command, format string, reports []*readinessReport) error {
	if format == "json" {
		return outputCheckJSON(cmd, reports)
	}
	w := cmd.OutOrStdout()
	for i, report := range reports {
		if len(reports) > 1 {
			if i > 0 {
				fmt.Fprintln(w) //nolint:errcheck
			}
			fmt.Fprintf(w, "\n=== %s ===\n", displayName(report)) //nolint:errcheck
		}
		displayReadinessReport(w, report)
	}
	if len(reports) > 1 {
		printCheckSummaryTable(w, reports)
	}
	return nil
}

func displayName(r *readinessReport) string {
	if r.projectName != "" {
		return r.projectName
	}
	return "unnamed"
}

// outputCheckJSON marshals reports as JSON to the command's stdout.
func outputCheckJSON(cmd *cobra.Command, reports []*readinessReport) error {
	jsonReport := checkJSONReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Projects:  make([]projectJSONReport, 0, len(reports)),
	}
	for _, r := range reports {
		jsonReport.Projects = append(jsonReport.Projects, buildProjectJSON(r))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), buf.String())
	return err
}

// buildProjectJSON converts a readinessReport to its JSON representation.
func buildProjectJSON(report *readinessReport) projectJSONReport {
	jr := projectJSONReport{
		Name:       displayName(report),
		Dir:        report.projectDir,
		ConfigPath: report.configPath,
		Ready:      report.ready(),
	}

	jr.Config = configJSON{
		Found: report.configFound,
		Valid: report.loadErr == "" && len(report.schemaErrs) == 0,
	}
	if report.loadErr != "" {
		jr.Config.Errors = append(jr.Config.Errors, report.loadErr)
	}
	jr.Config.Errors = append(jr.Config.Errors, report.schemaErrs...)

	for _, t := range report.tools {
		jr.Tools = append(jr.Tools, toolJSON{Name: t.name, Found: t.found, Required: t.required, Path: t.path})
	}
	for _, c := range report.creds {
		jr.Credentials = append(jr.Credentials, credentialJSON{
			EnvVar:  c.envVar,
			Purpose: c.purpose,
			Set:     c.set,
			Missing: c.missing,
			Note:    c.note,
		})
	}
	for _, l := range report.layout {
		jr.Layout = append(jr.Layout, layoutJSON{Path: l.path, Purpose: l.purpose, Found: l.found, Required: l.required})
	}

	if report.linkResult != nil {
		lr := &linksJSON{
			Report: report.reportPath,
			Valid:  report.linkResult.ValidLinks,
			Total:  report.linkResult.TotalLinks,
			Passed: report.linkResult.Passed(),
		}
		for _, bl := range report.linkResult.BrokenLinks {
			lr.BrokenLinks = append(lr.BrokenLinks, linkIssueJSON{Target: bl.Target, Reason: bl.Reason})
		}
		for _, dl := range report.linkResult.DirectoryLinks {
			lr.DirectoryLinks = append(lr.DirectoryLinks, linkIssueJSON{Target: dl.Target, Reason: dl.Reason})
		}
		for _, se := range report.linkResult.ScopeEscapes {
			lr.ScopeEscapes = append(lr.ScopeEscapes, linkIssueJSON{Target: se.Target, Reason: se.Reason})
		}
		for _, du := range report.linkResult.DeadURLs {
			lr.DeadURLs = append(lr.DeadURLs, linkIssueJSON{Target: du.Target, Reason: du.Reason})
		}
		jr.Links = lr
	}

	jr.NextSteps = generateNextSteps(report)
	return jr
}

// ---------------------------------------------------------------------------
// Shared display helpers.
//
// Convention:
//   Section header:  "emoji Title: summary\n"
//   Status line:     "   emoji  message\n"   (3-space indent, emoji, 2-space gap)
//
// 3-state icons:  ✅ = ok/passed   ⚠️ = warning   ❌ = error/failed
// ---------------------------------------------------------------------------

type writer = interface{ Write([]byte) (int, error) }

// writeSection prints a section header: "emoji Title: summary\n".
//
//nolint:errcheck
func writeSection(w writer, emoji, title, summary string) {
	if summary != "" {
		fmt.Fprintf(w, "%s %s: %s\n", emoji, title, summary)
	} else {
		fmt.Fprintf(w, "%s %s\n", emoji, title)
	}
}

// writeStatus prints a status line: "   icon  message\n".
//
//nolint:errcheck
func writeStatus(w writer, icon, message string) {
	fmt.Fprintf(w, "   %s  %s\n", icon, message)
}

// statusIcon returns the standard 3-state icon for the given state.
func statusIcon(state string) string {
	switch state {
	case "ok":
		return "✅"
	case "warning":
		return "⚠️"
	case "error":
		return "❌"
	default:
		return "—"
	}
}

//nolint:errcheck
func displayReadinessReport(w writer, report *readinessReport) {
	// Config section
	switch {
	case report.loadErr != "":
		writeSection(w, "📋", "Config", "error")
		writeStatus(w, statusIcon("error"), report.loadErr)
	case !report.configFound:
		writeSection(w, "📋", "Config", "no mlship.yaml, using defaults")
		writeStatus(w, statusIcon("warning"), "run 'mlship init' to pin the project configuration")
	case len(report.schemaErrs) > 0:
		writeSection(w, "📋", "Config", fmt.Sprintf("%d schema error(s)", len(report.schemaErrs)))
		for _, e := range report.schemaErrs {
			writeStatus(w, statusIcon("error"), e)
		}
	default:
		writeSection(w, "📋", "Config", filepath.Base(report.configPath))
		writeStatus(w, statusIcon("ok"), "schema valid")
	}
	fmt.Fprintln(w)

	if len(report.tools) > 0 {
		writeSection(w, "🔧", "Tools", "")
		for _, t := range report.tools {
			switch {
			case t.found:
				writeStatus(w, statusIcon("ok"), fmt.Sprintf("%s (%s)", t.name, t.path))
			case t.required:
				writeStatus(w, statusIcon("error"), fmt.Sprintf("%s: not found on PATH (%s)", t.name, t.purpose))
			default:
				writeStatus(w, statusIcon("warning"), fmt.Sprintf("%s: not found on PATH", t.name))
			}
		}
		fmt.Fprintln(w)
	}

	if len(report.creds) > 0 {
		writeSection(w, "🔑", "Credentials", "")
		for _, c := range report.creds {
			icon := "—"
			switch {
			case c.set:
				icon = statusIcon("ok")
			case c.missing:
				icon = statusIcon("error")
			case c.note != "":
				icon = statusIcon("warning")
			}
			line := fmt.Sprintf("%s (%s)", c.envVar, c.purpose)
			if !c.set && c.note != "" {
				line += ": " + c.note
			}
			writeStatus(w, icon, line)
		}
		fmt.Fprintln(w)
	}

	if len(report.layout) > 0 {
		writeSection(w, "📁", "Layout", "")
		for _, l := range report.layout {
			switch {
			case l.found:
				writeStatus(w, statusIcon("ok"), fmt.Sprintf("%s (%s)", l.path, l.purpose))
			case l.required:
				writeStatus(w, statusIcon("error"), fmt.Sprintf("%s: missing (%s)", l.path, l.purpose))
			default:
				writeStatus(w, statusIcon("warning"), fmt.Sprintf("%s: missing (%s)", l.path, l.purpose))
			}
		}
		fmt.Fprintln(w)
	}

	if report.linkResult != nil {
		lr := report.linkResult
		writeSection(w, "🔗", "Report links", fmt.Sprintf("%d/%d valid in %s", lr.ValidLinks, lr.TotalLinks, report.reportPath))
		if lr.Passed() {
			writeStatus(w, statusIcon("ok"), "all links resolve")
		} else {
			for _, iss := range lr.Issues() {
				writeStatus(w, statusIcon("error"), fmt.Sprintf("%s: %s", iss.Target, iss.Reason))
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Next steps:")
	for _, s := range generateNextSteps(report) {
		fmt.Fprintf(w, "  → %s\n", s)
	}
}

func printCheckSummaryTable(w writer, reports []*readinessReport) {
	const maxNameWidth = 25
	const minNameWidth = 10

	// Compute dynamic column width from the longest project name.
	nameWidth := len("Project")
	for _, r := range reports {
		if runeLen := utf8.RuneCountInString(displayName(r)); runeLen > nameWidth {
			nameWidth = runeLen
		}
	}
	if nameWidth > maxNameWidth {
		nameWidth = maxNameWidth
	}
	if nameWidth < minNameWidth {
		nameWidth = minNameWidth
	}

	// Fixed column widths (display columns) for emoji-safe alignment.
	const colConfig = 8
	const colTools = 7
	const colCreds = 7
	const colLayout = 8
	const colLinks = 7
	totalWidth := nameWidth + colConfig + colTools + colCreds + colLayout + colLinks + 12

	fmt.Fprintf(w, "\n")                                      //nolint:errcheck
	fmt.Fprintf(w, "%s\n", strings.Repeat("═", totalWidth))   //nolint:errcheck
	fmt.Fprintf(w, " CHECK SUMMARY\n")                        //nolint:errcheck
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("═", totalWidth)) //nolint:errcheck

	fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("Project", nameWidth),
		padRight("Config", colConfig),
		padRight("Tools", colTools),
		padRight("Creds", colCreds),
		padRight("Layout", colLayout),
		"Links")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", totalWidth)) //nolint:errcheck

	for _, r := range reports {
		name := truncateName(displayName(r), nameWidth)

		configCol := "✅"
		if r.loadErr != "" || len(r.schemaErrs) > 0 {
			configCol = "❌"
		} else if !r.configFound {
			configCol = "⚠️"
		}
		toolsCol := "✅"
		for _, t := range r.tools {
			if t.required && !t.found {
				toolsCol = "❌"
				break
			}
		}
		credsCol := "✅"
		for _, c := range r.creds {
			if c.missing {
				credsCol = "❌"
				break
			}
		}
		layoutCol := "✅"
		for _, l := range r.layout {
			if l.required && !l.found {
				layoutCol = "❌"
				break
			}
		}
		linksCol := "—"
		if r.linkResult != nil {
			linksCol = "✅"
			if !r.linkResult.Passed() {
				linksCol = "❌"
			}
		}

		fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
			padRight(name, nameWidth),
			padRight(configCol, colConfig),
			padRight(toolsCol, colTools),
			padRight(credsCol, colCreds),
			padRight(layoutCol, colLayout),
			linksCol)
	}
	fmt.Fprintf(w, "\n") //nolint:errcheck
}

// truncateName shortens a name to maxLen runes, replacing the last rune with "…" if needed.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
