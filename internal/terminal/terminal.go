package terminal

import (
	"fmt"
	"strings"

	"UCLA-Rocket-Project/GALIL/internal/tester"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type UIState int

const (
	VIEW_LIST_TARGETS UIState = iota
	VIEW_SELECT_TESTS
	VIEW_TEST_RUNNER
	VIEW_LOADING
)

const SELECT_ALL = "Select All"
const MAX_LOG_LINES = 8

type TestStatus int

const (
	StatusPending TestStatus = iota
	StatusRunning
	StatusPass
	StatusFail
	StatusSkipped
)

type TestResult struct {
	Name   string
	Status TestStatus
	Checks int
	Logs   []string
}

type connectionSuccessMsg struct {
	tester *tester.Tester
}

type connectionErrorMsg struct {
	err error
}

type LogMsg string

type TestStartMsg struct {
	Index int
}

type TestResultMsg struct {
	Index  int
	Result tester.GroupResult
}

type RunFinishedMsg struct {
	Report tester.Report
	Err    error
}

type TargetLister func() ([]string, error)
type Connector func(address string) (*tester.Tester, error)
type ReportSaver func(tester.Report) error

// defines the internal state of the TUI
type model struct {
	// methods
	connector Connector
	save      ReportSaver
	logger    *zap.Logger

	// global internal state
	uiState UIState
	cursor  int
	err     error

	// connect to target internal state
	targets []string
	target  string
	tester  *tester.Tester

	// select tests internal state
	groups        []tester.Group
	selectedTests map[int]struct{}

	// test runner internal state
	spinner  spinner.Model
	run      *testRun
	results  []TestResult
	report   *tester.Report
	finished bool
}

func StartApplication(lister TargetLister, connector Connector, save ReportSaver, logger *zap.Logger) error {
	targets, err := lister()
	if err != nil {
		return fmt.Errorf("listing targets: %w", err)
	}

	final, err := tea.NewProgram(initialModel(targets, connector, save, logger)).Run()
	if err != nil {
		logger.Error("Error running TUI program", zap.Error(err))
	}

	if m, ok := final.(model); ok {
		err = multierr.Append(err, m.shutdown())
	}
	return err
}

// shutdown lets a run still in progress finish unheard, then closes the
// connection it was using.
func (m model) shutdown() error {
	if m.run != nil {
		m.run.abandon()
	}
	if m.tester == nil {
		return nil
	}
	return m.tester.Close()
}

// TUI tries to use functional programming paradigms, so you return a new model everytime, rather
// then modify a pointer
func initialModel(targets []string, connector Connector, save ReportSaver, logger *zap.Logger) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle

	return model{
		connector:     connector,
		save:          save,
		logger:        logger,
		uiState:       VIEW_LIST_TARGETS,
		targets:       targets,
		groups:        tester.Groups(),
		selectedTests: make(map[int]struct{}),
		spinner:       s,
	}
}

func connectToTarget(connector Connector, address string) tea.Cmd {
	return func() tea.Msg {
		ts, err := connector(address)
		if err != nil {
			return connectionErrorMsg{err: err}
		}
		return connectionSuccessMsg{tester: ts}
	}
}

// testRun carries the messages of one background run to the UI
type testRun struct {
	ch chan any
	// closed once the UI stops listening
	stop chan struct{}
	// closed when runTests returns
	done chan struct{}
}

func newTestRun() *testRun {
	return &testRun{
		ch:   make(chan any),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// send reports false once nobody is listening
func (r *testRun) send(msg any) bool {
	select {
	case r.ch <- msg:
		return true
	case <-r.stop:
		return false
	}
}

func (r *testRun) abandon() {
	close(r.stop)
	<-r.done
}

// chanWriter turns group progress into one LogMsg per line
type chanWriter struct {
	run *testRun
}

func (w *chanWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" && !w.run.send(LogMsg(line)) {
			break
		}
	}
	return len(p), nil
}

func waitForLog(ch <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// runTests runs the selected groups and streams their progress into run.
func runTests(ts *tester.Tester, groups []tester.Group, save ReportSaver, run *testRun) {
	defer close(run.done)
	defer close(run.ch)

	ts.SetOutput(&chanWriter{run: run})

	resultIdx := 0
	report := ts.Run(groups, tester.Hooks{
		GroupStarted: func(name string) {
			run.send(TestStartMsg{Index: resultIdx})
		},
		GroupFinished: func(result tester.GroupResult) {
			run.send(TestResultMsg{Index: resultIdx, Result: result})
			resultIdx++
		},
	})

	var err error
	if save != nil {
		err = save(report)
	}
	run.send(RunFinishedMsg{Report: report, Err: err})
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) selected() []tester.Group {
	var groups []tester.Group
	for idx, group := range m.groups {
		// index 0 is Select All
		if _, ok := m.selectedTests[idx+1]; ok {
			groups = append(groups, group)
		}
	}
	return groups
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Galil I/O Tests"))
	b.WriteString("\n")
	if m.target != "" && m.uiState != VIEW_LIST_TARGETS {
		b.WriteString(mutedStyle.Render(m.target))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error %v", m.err)))
		b.WriteString("\n\n")
	}

	switch m.uiState {
	case VIEW_LIST_TARGETS:
		b.WriteString("Select a controller:\n\n")
		if len(m.targets) == 0 {
			b.WriteString(mutedStyle.Render("no addresses configured and no serial ports found"))
			b.WriteString("\n")
		}
		for i, target := range m.targets {
			b.WriteString(fmt.Sprintf("%s %s\n", renderCursor(i == m.cursor), renderItem(target, i == m.cursor)))
		}
		b.WriteString("\n" + renderHint("enter connect • q quit"))
	case VIEW_LOADING:
		b.WriteString(m.spinner.View() + " Connecting...\n")
	case VIEW_SELECT_TESTS:
		b.WriteString("Select test groups:\n\n")
		names := append([]string{SELECT_ALL}, groupNames(m.groups)...)
		for i, name := range names {
			_, checked := m.selectedTests[i]
			b.WriteString(fmt.Sprintf("%s %s %s\n", renderCursor(i == m.cursor), renderCheckbox(checked), renderItem(name, i == m.cursor)))
		}
		b.WriteString("\n" + renderHint("space toggle • enter run • esc disconnect • q quit"))
	case VIEW_TEST_RUNNER:
		for _, result := range m.results {
			b.WriteString(fmt.Sprintf("%s %s", renderStatusIcon(result.Status, m.spinner.View()), renderTestName(result.Name, result.Status)))
			if result.Checks > 0 {
				b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d checks", result.Checks)))
			}
			b.WriteString("\n")

			if result.Status == StatusRunning || result.Status == StatusFail {
				logs := result.Logs
				if len(logs) > MAX_LOG_LINES {
					logs = logs[len(logs)-MAX_LOG_LINES:]
				}
				for _, line := range logs {
					b.WriteString(logIndent + logContentStyle.Render(line) + "\n")
				}
			}
		}

		if m.finished {
			b.WriteString("\n")
			if m.report != nil && m.report.Passed() {
				b.WriteString(successStyle.Render("All selected groups passed"))
			} else if m.report != nil {
				b.WriteString(errorStyle.Render(m.report.Failure.Error()))
			}
			b.WriteString("\n\n" + renderHint("enter back to groups • q quit"))
		}
	}

	return containerStyle.Render(b.String()) + "\n"
}

func groupNames(groups []tester.Group) []string {
	names := make([]string, len(groups))
	for i, group := range groups {
		names[i] = group.Name
	}
	return names
}
