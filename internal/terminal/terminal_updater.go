package terminal

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// a running group cannot be interrupted mid command
			if m.uiState == VIEW_TEST_RUNNER && !m.finished && msg.String() == "q" {
				return m, nil
			}
			return m, tea.Quit
		}
	case spinner.TickMsg:
		if m.uiState != VIEW_LOADING && (m.uiState != VIEW_TEST_RUNNER || m.finished) {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case LogMsg:
		// Find currently running test and append log
		for i := range m.results {
			if m.results[i].Status == StatusRunning {
				m.results[i].Logs = append(m.results[i].Logs, string(msg))
				break
			}
		}
		return m, waitForLog(m.run.ch)
	case TestStartMsg:
		if msg.Index >= 0 && msg.Index < len(m.results) {
			m.results[msg.Index].Status = StatusRunning
		}
		return m, waitForLog(m.run.ch)
	case TestResultMsg:
		if msg.Index >= 0 && msg.Index < len(m.results) {
			m.results[msg.Index].Checks = msg.Result.Checks
			m.results[msg.Index].Status = statusOf(msg.Result.Status)
		}
		return m, waitForLog(m.run.ch)
	case RunFinishedMsg:
		m.finished = true
		m.report = &msg.Report
		if msg.Err != nil {
			m.err = fmt.Errorf("saving report: %w", msg.Err)
		}
		return m, nil
	}

	switch m.uiState {
	case VIEW_LIST_TARGETS:
		return m.updateTargetSelection(msg)
	case VIEW_LOADING:
		return m.updateLoading(msg)
	case VIEW_SELECT_TESTS:
		return m.updateSelectTests(msg)
	case VIEW_TEST_RUNNER:
		return m.updateRunner(msg)
	}

	return m, nil
}

func (m model) updateTargetSelection(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down":
			if m.cursor < len(m.targets)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.targets) == 0 {
				return m, nil
			}
			m.err = nil
			m.target = m.targets[m.cursor]
			m.uiState = VIEW_LOADING
			return m, tea.Batch(connectToTarget(m.connector, m.target), m.spinner.Tick)
		}
	}

	return m, nil
}

func (m model) updateLoading(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case connectionSuccessMsg:
		m.tester = msg.tester
		m.cursor = 0
		m.uiState = VIEW_SELECT_TESTS
		return m, nil
	case connectionErrorMsg:
		m.logger.Warn("Could not connect", zap.String("target", m.target), zap.Error(msg.err))
		m.err = msg.err
		m.uiState = VIEW_LIST_TARGETS
		return m, nil
	}
	return m, nil
}

func (m model) updateSelectTests(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down":
			if m.cursor < len(m.groups) {
				m.cursor++
			}
		case " ":
			if m.cursor == 0 {
				if _, ok := m.selectedTests[m.cursor]; !ok {
					for i := 0; i <= len(m.groups); i++ {
						m.selectedTests[i] = struct{}{}
					}
				} else {
					for i := 0; i <= len(m.groups); i++ {
						delete(m.selectedTests, i)
					}
				}
			} else {
				if _, ok := m.selectedTests[m.cursor]; !ok {
					m.selectedTests[m.cursor] = struct{}{}
				} else {
					delete(m.selectedTests, m.cursor)
					delete(m.selectedTests, 0)
				}
			}
		case "esc":
			if err := m.tester.Close(); err != nil {
				m.logger.Warn("Error closing connection", zap.Error(err))
			}
			m.tester = nil
			m.cursor = 0
			m.uiState = VIEW_LIST_TARGETS
		case "enter":
			groups := m.selected()
			if len(groups) == 0 {
				m.err = fmt.Errorf("select at least one test group")
				return m, nil
			}
			m.err = nil
			m.uiState = VIEW_TEST_RUNNER
			m.finished = false
			m.report = nil
			m.run = newTestRun()

			m.results = make([]TestResult, len(groups))
			for i, group := range groups {
				m.results[i] = TestResult{Name: group.Name, Status: StatusPending}
			}

			go runTests(m.tester, groups, m.save, m.run)

			return m, tea.Batch(waitForLog(m.run.ch), m.spinner.Tick)
		}
	}

	return m, nil
}

func (m model) updateRunner(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && m.finished && key.String() == "enter" {
		m.uiState = VIEW_SELECT_TESTS
		m.cursor = 0
		m.err = nil
	}
	return m, nil
}
