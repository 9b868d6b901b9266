package tester

import (
	"fmt"
	"io"
	"strings"
	"time"

	"UCLA-Rocket-Project/GALIL/internal/embedded"
	"UCLA-Rocket-Project/GALIL/internal/galil"

	"go.uber.org/zap"
)

type Status string

const (
	STATUS_PASS    Status = "pass"
	STATUS_FAIL    Status = "fail"
	STATUS_SKIPPED Status = "skipped"
)

type Group struct {
	Name string
	Run  func(t *T, gl *galil.Galil)
}

type GroupResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Checks   int           `json:"checks"`
	Duration time.Duration `json:"duration"`
	Failure  *Failure      `json:"failure,omitempty"`
}

type Report struct {
	Target   string        `json:"target"`
	Info     string        `json:"info"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Groups   []GroupResult `json:"groups"`
	Failure  *Failure      `json:"failure,omitempty"`
}

func (r Report) Passed() bool {
	return r.Failure == nil
}

func (r Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Target: %s\n", r.Target)
	fmt.Fprintf(&b, "Started: %s (%s)\n", r.Started.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "  %-8s %-16s %3d checks\n", strings.ToUpper(string(g.Status)), g.Name, g.Checks)
	}
	if r.Failure != nil {
		fmt.Fprintf(&b, "FAILED: %s\n", r.Failure.Error())
	} else {
		b.WriteString("PASSED\n")
	}
	return b.String()
}

// Hooks let a caller follow a run as it happens. Either may be nil.
type Hooks struct {
	GroupStarted  func(name string)
	GroupFinished func(result GroupResult)
}

// Tester owns one connection to the controller under test.
type Tester struct {
	gl     *galil.Galil
	logger *zap.Logger
	out    io.Writer
}

// New connects to address through funcs. The caller must Close the Tester.
func New(funcs embedded.Functions, address string, logger *zap.Logger) (*Tester, error) {
	gl, err := galil.New(funcs, address, logger)
	if err != nil {
		return nil, err
	}

	return &Tester{
		gl:     gl,
		logger: logger,
		out:    io.Discard,
	}, nil
}

// SetOutput sets where group progress lines are written.
func (ts *Tester) SetOutput(w io.Writer) {
	ts.out = w
}

func (ts *Tester) Galil() *galil.Galil {
	return ts.gl
}

func (ts *Tester) Close() error {
	return ts.gl.Close()
}

// RunTests runs every group in order.
func (ts *Tester) RunTests() Report {
	return ts.Run(Groups(), Hooks{})
}

// Run runs groups in order. The first failure ends the run and the
// remaining groups are reported as skipped.
func (ts *Tester) Run(groups []Group, hooks Hooks) Report {
	report := Report{
		Target:  ts.gl.Address(),
		Info:    ts.gl.String(),
		Started: time.Now(),
	}
	ts.logger.Info("Starting test run", zap.String("target", report.Target), zap.Int("groups", len(groups)))

	for _, group := range groups {
		var result GroupResult
		if report.Failure != nil {
			result = GroupResult{Name: group.Name, Status: STATUS_SKIPPED}
		} else {
			if hooks.GroupStarted != nil {
				hooks.GroupStarted(group.Name)
			}
			result = ts.runGroup(group)
			report.Failure = result.Failure
		}

		ts.logger.Info("Group finished",
			zap.String("group", result.Name),
			zap.String("status", string(result.Status)),
			zap.Int("checks", result.Checks),
		)
		report.Groups = append(report.Groups, result)
		if hooks.GroupFinished != nil {
			hooks.GroupFinished(result)
		}
	}

	report.Duration = time.Since(report.Started)
	if report.Failure != nil {
		ts.logger.Warn("Test run failed", zap.Error(report.Failure))
	} else {
		ts.logger.Info("Test run passed", zap.Duration("duration", report.Duration))
	}
	return report
}

func (ts *Tester) runGroup(group Group) (result GroupResult) {
	t := newT(group.Name, ts.out)
	start := time.Now()
	result.Name = group.Name

	defer func() {
		result.Checks = t.checks
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			result.Status = STATUS_FAIL
			result.Failure = a.failure
		}
	}()

	t.Logf("starting")
	group.Run(t, ts.gl)
	t.Logf("passed %d checks", t.checks)

	result.Status = STATUS_PASS
	return result
}
