// signalwatch is a terminal viewer for the pumpwatch signal stream. It
// connects to the server websocket and renders each snapshot as it arrives.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"pumpwatch/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#0077cc")).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#aaaaaa"))
	gainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#33cc33"))
	staleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#cc3300")).
			Bold(true)
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type snapshotMsg models.SignalSnapshot

type connStateMsg struct {
	connected bool
	err       error
}

type model struct {
	url       string
	snapshot  *models.SignalSnapshot
	connected bool
	lastErr   error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case snapshotMsg:
		snap := models.SignalSnapshot(msg)
		m.snapshot = &snap
	case connStateMsg:
		m.connected = msg.connected
		m.lastErr = msg.err
	}
	return m, nil
}

func (m model) View() string {
	s := titleStyle.Render("pumpwatch — live signals") + "\n\n"

	if !m.connected {
		s += staleStyle.Render("disconnected")
		if m.lastErr != nil {
			s += statusStyle.Render("  " + m.lastErr.Error())
		}
		s += "\n\n"
	}

	if m.snapshot == nil {
		s += statusStyle.Render("waiting for first snapshot...") + "\n"
		return s
	}

	if m.snapshot.Status == models.StatusFeedUnavailable {
		s += staleStyle.Render("feed unavailable") + "\n\n"
	}

	s += headerStyle.Render(fmt.Sprintf("%-12s %14s %16s %9s %8s", "SYMBOL", "PRICE", "VOL 24H", "24H%", "1H%")) + "\n"
	if len(m.snapshot.Signals) == 0 {
		s += statusStyle.Render("no qualifying signals right now") + "\n"
	}
	for _, sig := range m.snapshot.Signals {
		row := fmt.Sprintf("%-12s %14s %16s %8.2f%% %7.2f%%",
			sig.Symbol,
			sig.Price.StringFixed(6),
			sig.QuoteVolume24h.StringFixed(0),
			sig.ChangePct24h,
			sig.ChangePct1h,
		)
		s += gainStyle.Render(row) + "\n"
	}

	s += "\n" + statusStyle.Render(fmt.Sprintf("gen %d · as of %s · q to quit",
		m.snapshot.Generation, m.snapshot.AsOf.Format("15:04:05")))
	return s
}

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "pumpwatch websocket URL")
	flag.Parse()

	p := tea.NewProgram(model{url: *url}, tea.WithAltScreen())
	go readLoop(p, *url)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "signalwatch: %v\n", err)
		os.Exit(1)
	}
}

// readLoop feeds snapshots into the UI, reconnecting with a flat delay when
// the server goes away. Reconnection is the viewer's responsibility; the
// server never retries a broken session.
func readLoop(p *tea.Program, url string) {
	for {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			p.Send(connStateMsg{connected: false, err: err})
			time.Sleep(2 * time.Second)
			continue
		}
		p.Send(connStateMsg{connected: true})

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				p.Send(connStateMsg{connected: false, err: err})
				break
			}
			var snap models.SignalSnapshot
			if err := json.Unmarshal(payload, &snap); err != nil {
				continue
			}
			p.Send(snapshotMsg(snap))
		}
		conn.Close()
		time.Sleep(2 * time.Second)
	}
}
