package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// OracleEventMsg is sent when a new oracle event arrives during watching.
type OracleEventMsg struct {
	Event       string // "ValueUpdated", "RequestSubmitted", "RequestFulfilled"
	Detail      string // formatted payload, e.g. "1842.5000 from 0x1234…5678"
	FullHash    string
	BlockNum    uint64
	When        time.Time
	ExplorerURL string
}

// GasTickMsg updates the gas readout in the status bar.
type GasTickMsg struct {
	Gwei float64
	USD  float64
}

// WatchStatusMsg updates the connection line.
type WatchStatusMsg struct {
	Connected bool
	Account   string
	ErrMsg    string
}

// WatchModel is the Bubble Tea model for the live oracle event stream.
type WatchModel struct {
	Contract string
	Chain    string
	Rows     []OracleEventMsg
	cursor   int
	Status   WatchStatusMsg
	Gas      GasTickMsg
	Frame    int
	Quitting bool
	flash    string
}

type watchTickMsg struct{}

func watchSpinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return watchTickMsg{}
	})
}

func (m WatchModel) Init() tea.Cmd { return watchSpinTick() }

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		m.flash = ""
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.Rows)-1 {
				m.cursor++
			}

		case "o":
			if m.cursor < len(m.Rows) {
				url := m.Rows[m.cursor].ExplorerURL
				if url != "" {
					openBrowser(url)
					m.flash = "Opening in browser…"
				} else {
					m.flash = "No explorer URL available"
				}
			}

		case "c":
			if m.cursor < len(m.Rows) {
				hash := m.Rows[m.cursor].FullHash
				if hash == "" {
					m.flash = "No hash available"
					break
				}
				if err := copyToClipboard(hash); err == nil {
					m.flash = "Copied: " + hash[:10] + "…"
				} else {
					m.flash = "Copy failed"
				}
			}
		}

	case watchTickMsg:
		m.Frame = (m.Frame + 1) % len(spinnerFrames)
		return m, watchSpinTick()

	case OracleEventMsg:
		// New events prepend so latest is at top.
		m.Rows = append([]OracleEventMsg{msg}, m.Rows...)
		// Cap at 200 rows.
		if len(m.Rows) > 200 {
			m.Rows = m.Rows[:200]
		}

	case GasTickMsg:
		m.Gas = msg

	case WatchStatusMsg:
		m.Status = msg
	}

	return m, nil
}

func (m WatchModel) View() string {
	if m.Quitting {
		return ""
	}

	var sb strings.Builder
	spin := spinnerFrames[m.Frame]

	title := fmt.Sprintf("👁  Oracle Events  ·  %s  ·  %s",
		TruncateAddr(m.Contract), m.Chain)
	sb.WriteString(StyleTitle.Render(title) + "\n")

	if m.Status.ErrMsg != "" {
		sb.WriteString(StyleError.Render("✗ "+m.Status.ErrMsg) + "\n")
	} else if m.Status.Connected {
		sb.WriteString(StyleSuccess.Render("● "+TruncateAddr(m.Status.Account)) +
			StyleMeta.Render(fmt.Sprintf("   gas %.2f gwei", m.Gas.Gwei)))
		if m.Gas.USD > 0 {
			sb.WriteString(StyleMeta.Render(fmt.Sprintf(" ($%.2f)", m.Gas.USD)))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString(StyleMeta.Render(spin+" connecting…") + "\n")
	}
	sb.WriteString("\n")

	const (
		wEvent  = 18
		wDetail = 40
		wBlk    = 10
	)
	sep := StyleMeta.Render(strings.Repeat("─", wEvent+wDetail+wBlk+16))

	sb.WriteString(
		padR(StyleDim.Render("EVENT"), wEvent) + "  " +
			padR(StyleDim.Render("DETAIL"), wDetail) + "  " +
			padR(StyleDim.Render("BLOCK"), wBlk) + "  " +
			StyleDim.Render("WHEN") + "\n",
	)
	sb.WriteString(sep + "\n")

	if len(m.Rows) == 0 {
		sb.WriteString(StyleMeta.Render("  Waiting for events…") + "\n")
	} else {
		for i, row := range m.Rows {
			var evStr string
			switch row.Event {
			case "ValueUpdated":
				evStr = StyleSuccess.Render(row.Event)
			case "RequestSubmitted":
				evStr = StyleWarning.Render(row.Event)
			default:
				evStr = StyleAddress.Render(row.Event)
			}

			line :=
				padR(evStr, wEvent) + "  " +
					padR(StyleValue.Render(row.Detail), wDetail) + "  " +
					padR(StyleMeta.Render(fmt.Sprintf("#%d", row.BlockNum)), wBlk) + "  " +
					StyleMeta.Render(row.When.Format("15:04:05"))

			if i == m.cursor {
				sb.WriteString(StyleSelected.Render(line) + "\n")
			} else {
				sb.WriteString(line + "\n")
			}
		}
		sb.WriteString(sep + "\n")
		sb.WriteString(StyleMeta.Render(fmt.Sprintf("  %d event(s)", len(m.Rows))) + "\n")
	}

	sb.WriteString("\n")
	if m.flash != "" {
		sb.WriteString(StyleSuccess.Render("  ✓ " + m.flash))
	} else {
		sb.WriteString(watchControls())
	}
	sb.WriteString("\n")

	return sb.String()
}

func watchControls() string {
	sep := StyleMeta.Render("   ")
	var sb strings.Builder
	sb.WriteString(StyleMeta.Render("[ ↑↓ ]"))
	sb.WriteString(StyleMeta.Render(" navigate"))
	sb.WriteString(sep)
	sb.WriteString(StyleAddress.Render("[ o ]"))
	sb.WriteString(StyleMeta.Render(" open in browser"))
	sb.WriteString(sep)
	sb.WriteString(StyleWarning.Render("[ c ]"))
	sb.WriteString(StyleMeta.Render(" copy hash"))
	sb.WriteString(sep)
	sb.WriteString(StyleMeta.Render("[ q ]"))
	sb.WriteString(StyleMeta.Render(" quit"))
	return sb.String()
}
