// canteen-cli is a small staff terminal for order fulfillment: it lists
// pending orders and completes or cancels the selected one.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-resty/resty/v2"
)

type order struct {
	ID        int64  `json:"id"`
	ShortCode string `json:"short_code"`
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type model struct {
	client   *resty.Client
	orders   []order
	selected int
	status   string
	busy     bool
}

type ordersLoaded struct {
	orders []order
	err    error
}

type actionDone struct {
	message string
	err     error
}

func initialModel(baseURL string) model {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(5 * time.Second)
	return model{client: client, status: "Loading..."}
}

func (m model) Init() tea.Cmd {
	return fetchOrders(m.client)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up":
			if m.selected > 0 {
				m.selected--
			}
		case "down":
			if m.selected < len(m.orders)-1 {
				m.selected++
			}
		case "r":
			m.status = "Refreshing..."
			return m, fetchOrders(m.client)
		case "c":
			return m.transitionSelected("Completed")
		case "x":
			return m.transitionSelected("Cancelled")
		}
	case ordersLoaded:
		m.busy = false
		if msg.err != nil {
			m.status = "Fetch failed: " + msg.err.Error()
			return m, nil
		}
		m.orders = msg.orders
		if m.selected >= len(m.orders) {
			m.selected = 0
		}
		m.status = fmt.Sprintf("%d pending orders", len(m.orders))
	case actionDone:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = msg.message
		return m, fetchOrders(m.client)
	}
	return m, nil
}

func (m model) transitionSelected(status string) (tea.Model, tea.Cmd) {
	if m.busy || len(m.orders) == 0 {
		return m, nil
	}
	m.busy = true
	m.status = "Updating..."
	return m, transitionOrder(m.client, m.orders[m.selected].ID, status)
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "canteen orders: pending")
	fmt.Fprintln(b, "")
	if len(m.orders) == 0 {
		fmt.Fprintln(b, "  (no pending orders)")
	}
	for i, o := range m.orders {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s #%s  order %d  student %s\n", marker, o.ShortCode, o.ID, o.StudentID)
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	fmt.Fprintln(b, "\nControls: up/down select, c complete, x cancel, r refresh, q quit")
	return b.String()
}

func fetchOrders(client *resty.Client) tea.Cmd {
	return func() tea.Msg {
		var orders []order
		resp, err := client.R().SetResult(&orders).Get("/api/orders/status/Pending")
		if err != nil {
			return ordersLoaded{err: err}
		}
		if resp.IsError() {
			return ordersLoaded{err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())}
		}
		return ordersLoaded{orders: orders}
	}
}

func transitionOrder(client *resty.Client, id int64, status string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.R().
			SetBody(map[string]string{"status": status}).
			Put(fmt.Sprintf("/api/orders/%d/status", id))
		if err != nil {
			return actionDone{err: err}
		}
		if resp.IsError() {
			return actionDone{err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())}
		}
		return actionDone{message: fmt.Sprintf("Order %d -> %s", id, status)}
	}
}

func main() {
	baseURL := getenv("CANTEEN_BASE_URL", "http://localhost:8080")
	p := tea.NewProgram(initialModel(baseURL))
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
