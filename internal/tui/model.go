// Package tui is a terminal client for practice sessions. It drives the same
// session state machine as the HTTP API.
package tui

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pavelanni/revision/internal/generate"
	appI18n "github.com/pavelanni/revision/internal/i18n"
	"github.com/pavelanni/revision/internal/model"
	"github.com/pavelanni/revision/internal/session"
)

// Generator produces questions for a configuration.
type Generator interface {
	Generate(ctx context.Context, cfg model.QuizConfig) (generate.Result, error)
}

// Evaluator scores one answer. It never fails.
type Evaluator interface {
	Evaluate(ctx context.Context, q model.Question, answer string) model.Evaluation
}

// Options configures the terminal client.
type Options struct {
	NoColor bool
	Input   io.Reader
	Output  io.Writer
}

// Model is the Bubble Tea model of one practice run.
type Model struct {
	ctx     context.Context
	cfg     model.QuizConfig
	gen     Generator
	eval    Evaluator
	sess    session.Session
	input   textinput.Model
	spinner spinner.Model
	styles  styles

	busy    string // message ID of the running operation, "" when idle
	notice  string // message ID shown under the question
	failure string // message ID of the last generation failure
	width   int
}

// NewModel creates a model that generates questions for cfg on start.
// ctx carries the localizer and bounds provider calls.
func NewModel(ctx context.Context, cfg model.QuizConfig, gen Generator, eval Evaluator, opts Options) Model {
	in := textinput.New()
	in.Placeholder = appI18n.T(ctx, "AnswerPlaceholder")
	in.CharLimit = 2000
	in.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		cfg:     cfg,
		gen:     gen,
		eval:    eval,
		sess:    session.New(),
		input:   in,
		spinner: sp,
		styles:  newStyles(opts.NoColor),
		busy:    "Generating",
	}
}

// Session returns the current session value.
func (m Model) Session() session.Session {
	return m.sess
}

type generatedMsg struct {
	result generate.Result
	err    error
}

type checkedMsg struct {
	questionID string
	eval       model.Evaluation
}

// Init starts generating the first question set.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.generateCmd())
}

func (m Model) generateCmd() tea.Cmd {
	ctx, gen, cfg := m.ctx, m.gen, m.cfg
	return func() tea.Msg {
		res, err := gen.Generate(ctx, cfg)
		return generatedMsg{result: res, err: err}
	}
}

func (m Model) checkCmd(q model.Question, answer string) tea.Cmd {
	ctx, eval := m.ctx, m.eval
	return func() tea.Msg {
		return checkedMsg{questionID: q.ID, eval: eval.Evaluate(ctx, q, answer)}
	}
}

// Update handles generation and evaluation results and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil
	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case generatedMsg:
		return m.onGenerated(msg), nil
	case checkedMsg:
		return m.onChecked(msg), nil
	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return m, nil
}

func (m Model) onGenerated(msg generatedMsg) Model {
	m.busy = ""
	if msg.err != nil {
		m.failure = "GenerationFailed"
		return m
	}
	started, err := m.sess.Start(m.cfg, msg.result.Questions)
	if err != nil {
		if errors.Is(err, session.ErrInvalidConfig) {
			m.failure = "ConfigIncomplete"
		} else {
			m.failure = "NoQuestionsGenerated"
		}
		return m
	}
	m.failure = ""
	m.sess = started
	m.syncInput()
	return m
}

func (m Model) onChecked(msg checkedMsg) Model {
	m.busy = ""
	next, err := m.sess.RecordFeedback(msg.questionID, msg.eval)
	if err != nil {
		m.notice = noticeFor(err)
		return m
	}
	m.sess = next
	return m
}

func (m Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	}
	if m.busy != "" {
		return m, nil
	}
	m.notice = ""

	if m.sess.CheckIntegrity() != nil || m.sess.Phase == session.PhaseConfiguring {
		if msg.String() == "n" || msg.Type == tea.KeyEnter {
			return m.restart()
		}
		return m, nil
	}

	if m.sess.Phase == session.PhaseResults {
		switch msg.String() {
		case "r":
			return m.apply(m.sess.Review()), nil
		case "n":
			return m.restart()
		case "q":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyCtrlN:
		m = m.saveInput()
		return m.apply(m.sess.Next()), nil
	case tea.KeyCtrlP:
		m = m.saveInput()
		return m.apply(m.sess.Previous()), nil
	case tea.KeyCtrlR:
		m = m.saveInput()
		return m.apply(m.sess.ShowResults()), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit stores the typed answer and checks it, or moves on when the
// question already has a verdict.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if _, checked := m.sess.CurrentFeedback(); checked {
		m = m.saveInput()
		return m.apply(m.sess.Next()), nil
	}
	m = m.saveInput()
	answer := m.sess.CurrentAnswer()
	if strings.TrimSpace(answer) == "" {
		m.notice = "NoAnswer"
		return m, nil
	}
	q, _ := m.sess.Current()
	m.busy = "Checking"
	return m, tea.Batch(m.spinner.Tick, m.checkCmd(q, answer))
}

// restart discards the run and generates a new question set with the same
// configuration.
func (m Model) restart() (tea.Model, tea.Cmd) {
	m.sess = m.sess.Reset()
	m.failure = ""
	m.busy = "Generating"
	m.input.SetValue("")
	return m, tea.Batch(m.spinner.Tick, m.generateCmd())
}

// saveInput records the input field as the answer when it differs from the
// stored one.
func (m Model) saveInput() Model {
	q, ok := m.sess.Current()
	if !ok {
		return m
	}
	answer := resolveAnswer(q, m.input.Value())
	if answer == m.sess.CurrentAnswer() {
		return m
	}
	if next, err := m.sess.Answer(answer); err == nil {
		m.sess = next
	}
	return m
}

func (m Model) apply(next session.Session, err error) Model {
	if err != nil {
		m.notice = noticeFor(err)
		return m
	}
	m.sess = next
	m.syncInput()
	return m
}

func (m *Model) syncInput() {
	m.input.SetValue(m.sess.CurrentAnswer())
	if m.sess.Phase == session.PhaseActive {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func noticeFor(err error) string {
	switch {
	case errors.Is(err, session.ErrFeedbackRequired):
		return "CheckAnswerFirst"
	case errors.Is(err, session.ErrIntegrity):
		return "SessionRecovery"
	case errors.Is(err, session.ErrNoAnswer):
		return "NoAnswer"
	default:
		return "WrongPhase"
	}
}

// resolveAnswer maps shorthand input to the canonical answer text: an option
// number for multiple choice, t or f for true/false.
func resolveAnswer(q model.Question, input string) string {
	input = strings.TrimSpace(input)
	switch q.Type {
	case model.TypeMultipleChoice:
		if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(q.Options) {
			return q.Options[n-1]
		}
	case model.TypeTrueFalse:
		switch strings.ToLower(input) {
		case "t":
			return "true"
		case "f":
			return "false"
		}
	}
	return input
}

// Run plays one session in the terminal and returns its final state.
func Run(ctx context.Context, cfg model.QuizConfig, gen Generator, eval Evaluator, opts Options) (session.Session, error) {
	m := NewModel(ctx, cfg, gen, eval, opts)

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	} else {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	final, err := tea.NewProgram(m, progOpts...).Run()
	if err != nil {
		return m.sess, err
	}
	return final.(Model).Session(), nil
}
