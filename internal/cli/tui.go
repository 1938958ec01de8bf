package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/downline/pkg/render/bubble/layout"
	"github.com/matzehuels/downline/pkg/render/bubble/sink"
	"github.com/matzehuels/downline/pkg/tree"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// BrowseModel - Interactive focus browsing
// =============================================================================

// browseRow is one member in display order.
type browseRow struct {
	member   tree.Member
	level    tree.Level
	parentID string
}

// BrowseModel is the bubbletea model for browsing a tree and toggling the
// focused member the way a click on a bubble does.
type BrowseModel struct {
	Tree   *tree.Tree
	Layout layout.Layout
	Focus  string
	Cursor int
	Height int
	Offset int
	Err    error

	rows []browseRow
}

// NewBrowseModel creates a browse model with nothing focused.
func NewBrowseModel(t *tree.Tree) BrowseModel {
	m := BrowseModel{Tree: t, Height: 15}
	t.Walk(func(mem tree.Member, lvl tree.Level, parentID string) bool {
		m.rows = append(m.rows, browseRow{member: mem, level: lvl, parentID: parentID})
		return true
	})
	m.relayout()
	return m
}

// relayout rebuilds the layout for the current focus.
func (m *BrowseModel) relayout() {
	l, err := layout.Build(m.Tree, m.Focus)
	if err != nil {
		m.Err = err
		return
	}
	m.Layout, m.Err = l, nil
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", " ":
			if len(m.rows) == 0 {
				return m, nil
			}
			m.Focus = layout.Toggle(m.Focus, m.rows[m.Cursor].member.ID)
			m.relayout()
		case "esc":
			if m.Focus != "" {
				m.Focus = ""
				m.relayout()
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m BrowseModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Downline " + m.Tree.RootName()))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ focus  esc clear  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.rows))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		indent := strings.Repeat("  ", int(r.level))

		capital, downlines := "", ""
		if r.level != tree.LevelRoot {
			capital = sink.FormatCapital(r.member.Capital)
		}
		if r.level < tree.LevelThird {
			downlines = fmt.Sprintf("%d/%d", len(m.Tree.ChildrenOf(r.member.ID)), tree.MaxGroupSize)
		}

		scale := ""
		if bb, ok := m.Layout.Bubble(r.member.ID); ok {
			scale = strconv.FormatFloat(bb.Scale, 'f', 2, 64)
		}
		rows = append(rows, []string{cursor, indent + r.member.Name, r.level.String(), capital, downlines, scale})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Member", "Level", "Capital", "Downlines", "Scale").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == headerRow {
				return styleTableHeader
			}
			idx := m.Offset + row
			if idx >= len(m.rows) {
				return lipgloss.NewStyle()
			}
			r := m.rows[idx]
			base := lipgloss.NewStyle()
			if col == 1 {
				base = levelStyle(r.level)
			}
			if bb, ok := m.Layout.Bubble(r.member.ID); ok && bb.Opacity < 1 {
				base = base.Foreground(colorDim)
			}
			if idx == m.Cursor {
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")

	status := "no focus"
	if m.Focus != "" {
		if mem, ok := m.Tree.Find(m.Focus); ok {
			status = "focus " + listSelectedStyle.Render(mem.Name)
		}
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d] ", m.Cursor+1, len(m.rows))))
	b.WriteString(status)
	if m.Err != nil {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render(m.Err.Error()))
	}

	return b.String()
}

// browseCommand creates the browse command that runs BrowseModel.
func (c *CLI) browseCommand() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "browse [snapshot.json]",
		Short: "Browse a tree interactively and try out focus",
		Long: `Browse a downline tree in the terminal.

Select a member and press enter to focus it: its hierarchy grows, the rest
dims, exactly as the bubble diagram does. Press enter again or esc to clear.
Render the focus you like with "downline render --focus ID".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _, err := c.loadTree(cmd.Context(), args, owner)
			if err != nil {
				return err
			}
			final, err := tea.NewProgram(NewBrowseModel(t), tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return fmt.Errorf("browse: %w", err)
			}
			if bm, ok := final.(BrowseModel); ok && bm.Focus != "" {
				printNextStep("Render this focus", "downline render --focus "+bm.Focus)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "browse the owner's tree from the configured store")

	return cmd
}
