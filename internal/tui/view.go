package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	appI18n "github.com/pavelanni/revision/internal/i18n"
	"github.com/pavelanni/revision/internal/model"
	"github.com/pavelanni/revision/internal/session"
)

type styles struct {
	noColor bool
	title   lipgloss.Style
	muted   lipgloss.Style
	correct lipgloss.Style
	wrong   lipgloss.Style
	notice  lipgloss.Style
	body    lipgloss.Style
}

func newStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{noColor: true, title: plain.Bold(true), muted: plain, correct: plain, wrong: plain, notice: plain, body: plain}
	}
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33")),
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		correct: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		wrong:   lipgloss.NewStyle().Foreground(lipgloss.Color("160")),
		notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		body:    lipgloss.NewStyle().PaddingLeft(2),
	}
}

// View renders the current screen.
func (m Model) View() string {
	header := m.styles.title.Render(appI18n.T(m.ctx, "AppTitle")) + " " +
		m.styles.muted.Render(m.cfg.Subject+" / "+m.cfg.Topic)

	var body string
	switch {
	case m.busy != "":
		body = m.spinner.View() + " " + appI18n.T(m.ctx, m.busy)
	case m.sess.CheckIntegrity() != nil:
		body = m.renderRecovery()
	case m.sess.Phase == session.PhaseConfiguring:
		body = m.renderFailure()
	case m.sess.Phase == session.PhaseResults:
		body = m.renderResults()
	default:
		body = m.renderQuestion()
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body) + "\n"
}

func (m Model) renderFailure() string {
	id := m.failure
	if id == "" {
		id = "NoQuestionsGenerated"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.wrong.Render(appI18n.T(m.ctx, id)),
		"",
		m.styles.muted.Render(appI18n.T(m.ctx, "RetryHelp")),
	)
}

func (m Model) renderRecovery() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.wrong.Render(appI18n.T(m.ctx, "SessionRecovery")),
		appI18n.T(m.ctx, "RecoveryHint"),
		"",
		m.styles.muted.Render("n: "+appI18n.T(m.ctx, "BackToGenerator")),
	)
}

func (m Model) renderQuestion() string {
	q, _ := m.sess.Current()
	ctx := m.ctx

	lines := []string{
		m.styles.muted.Render(appI18n.Td(ctx, "QuestionOf", map[string]any{
			"Number": m.sess.CurrentIndex + 1,
			"Total":  len(m.sess.Questions),
		}) + " · " + string(q.Difficulty) + " · " + appI18n.Tp(ctx, "Marks", q.Marks)),
		"",
		m.styles.body.Render(q.Text),
		"",
	}
	switch q.Type {
	case model.TypeMultipleChoice:
		for i, opt := range q.Options {
			lines = append(lines, m.styles.body.Render(strconv.Itoa(i+1)+". "+opt))
		}
		lines = append(lines, "", m.styles.muted.Render(appI18n.T(ctx, "OptionHint")))
	case model.TypeTrueFalse:
		lines = append(lines, m.styles.muted.Render(appI18n.T(ctx, "TrueFalseHint")))
	}
	lines = append(lines, m.input.View())

	if ev, ok := m.sess.CurrentFeedback(); ok {
		style := m.styles.wrong
		if ev.IsCorrect {
			style = m.styles.correct
		}
		lines = append(lines, "", style.Render(fmt.Sprintf("%s (%s/%d)", ev.Feedback, formatScore(ev.Score), q.Marks)))
		if q.Explanation != "" {
			lines = append(lines, m.styles.muted.Render(appI18n.Td(ctx, "Explanation", map[string]any{"Text": q.Explanation})))
		}
	}
	if m.notice != "" {
		lines = append(lines, "", m.styles.notice.Render(appI18n.T(ctx, m.notice)))
	}
	lines = append(lines, "", m.styles.muted.Render(appI18n.T(ctx, "PlayHelp")))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderResults() string {
	res := m.sess.Results()
	ctx := m.ctx
	score := appI18n.Td(ctx, "YourScore", map[string]any{
		"Total":      formatScore(res.Score.TotalScore),
		"Max":        res.Score.MaxScore,
		"Percentage": res.Score.Percentage,
	})
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.title.Render(appI18n.T(ctx, "ResultsTitle")),
		score,
		"",
		resultsTable(res, m.width, m.styles.noColor).View(),
		"",
		m.styles.muted.Render(appI18n.T(ctx, "ResultsHelp")),
	)
}

func resultsTable(res model.SessionResults, width int, noColor bool) table.Model {
	textWidth := 40
	if width > 0 {
		textWidth = max(width-50, 20)
	}
	rows := make([]table.Row, 0, len(res.Questions))
	for _, q := range res.Questions {
		mark := "-"
		switch {
		case q.Feedback != "" && q.IsCorrect:
			mark = "✓"
		case q.Feedback != "":
			mark = "✗"
		}
		rows = append(rows, table.Row{
			strconv.Itoa(q.Number),
			truncate(q.Text, textWidth),
			truncate(q.Answer, 20),
			formatScore(q.Score) + "/" + strconv.Itoa(q.Marks),
			mark,
		})
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "Question", Width: textWidth},
			{Title: "Answer", Width: 20},
			{Title: "Score", Width: 7},
			{Title: "", Width: 2},
		}),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1),
	)
	st := table.DefaultStyles()
	if !noColor {
		st.Header = st.Header.Foreground(lipgloss.Color("252"))
	}
	st.Selected = lipgloss.NewStyle()
	t.SetStyles(st)
	return t
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
