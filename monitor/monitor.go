// Package monitor provides a TUI that shows the control-request traffic of
// a board live: one line per vendor request, with per-request counters and
// a scrolling log pane.
package monitor

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/deque"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/exp/maps"

	"github.com/openfet/gofet/board"
	"github.com/openfet/gofet/logging"
	"github.com/openfet/gofet/util"
)

const (
	monitorTitle = " GOFET Bus Monitor "
	// hexPreviewBytes caps how much payload is rendered per line.
	hexPreviewBytes = 16
)

// Monitor renders board trace entries in a TUI.
type Monitor struct {
	tviewapp     *tview.Application
	intro        *tview.TextView
	traffic      *tview.TextView
	logView      *tview.TextView
	ossignalChan chan os.Signal

	mu          sync.Mutex
	history     *deque.Deque[string]
	historySize int
	counters    map[string]int
	seq         int

	redraw       *util.Latest[struct{}]
	stopChan     chan struct{}
	drainWg      sync.WaitGroup
	logFlushOnce sync.Once
	readyChan    chan bool
}

// New creates a Monitor keeping at most historySize formatted entries.
func New(historySize int, ossignalchan chan os.Signal) *Monitor {
	m := &Monitor{
		ossignalChan: ossignalchan,
		history:      new(deque.Deque[string]),
		historySize:  historySize,
		counters:     make(map[string]int),
		redraw:       util.NewLatest[struct{}](),
		stopChan:     make(chan struct{}),
		readyChan:    make(chan bool),
	}
	m.history.Grow(historySize)
	return m
}

// Ready is closed once the TUI has drawn for the first time and the log
// pane has taken over the slog output.
func (m *Monitor) Ready() <-chan bool {
	return m.readyChan
}

// Trace records one entry. Safe to call from any goroutine; this is the
// callback handed to board.SetTrace.
func (m *Monitor) Trace(e board.TraceEntry) {
	m.mu.Lock()
	m.seq++
	line := formatEntry(m.seq, e)
	if m.history.Len() == m.historySize {
		m.history.PopFront()
	}
	m.history.PushBack(line)
	m.counters[e.Request.String()]++
	m.mu.Unlock()

	// Coalesce bursts of traffic into single redraws.
	m.redraw.Publish(struct{}{})
}

// SetHistorySize applies a new bound at runtime, trimming the oldest
// entries if needed.
func (m *Monitor) SetHistorySize(n int) {
	if n < 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historySize = n
	for m.history.Len() > n {
		m.history.PopFront()
	}
}

// Start builds the TUI and runs it. It blocks until the application stops.
func (m *Monitor) Start() error {
	m.setupUI()

	m.drainWg.Add(1)
	go m.drainRedraws()

	if err := m.tviewapp.Run(); err != nil {
		return fmt.Errorf("error running monitor TUI: %w", err)
	}
	return nil
}

// Stop tears the TUI down and detaches the log pane.
func (m *Monitor) Stop() {
	close(m.stopChan)
	m.drainWg.Wait()
	logging.BufferOutput()
	m.tviewapp.Stop()
}

func (m *Monitor) drainRedraws() {
	defer m.drainWg.Done()
	for {
		select {
		case <-m.stopChan:
			slog.Info("Ending monitor redraw go-routine...")
			return
		case <-m.redraw.C():
			text, title := m.renderTraffic()
			m.tviewapp.QueueUpdateDraw(func() {
				m.traffic.SetText(text)
				m.traffic.SetTitle(title)
				m.traffic.ScrollToEnd()
			})
		}
	}
}

// renderTraffic prepares the traffic pane content under the lock.
func (m *Monitor) renderTraffic() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var buf strings.Builder
	for i := 0; i < m.history.Len(); i++ {
		buf.WriteString(m.history.At(i))
		buf.WriteByte('\n')
	}

	names := maps.Keys(m.counters)
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", name, m.counters[name]))
	}
	title := monitorTitle
	if len(parts) > 0 {
		title = fmt.Sprintf(" %s ", strings.Join(parts, "  "))
	}
	return buf.String(), title
}

func formatEntry(seq int, e board.TraceEntry) string {
	status := "[green]ok[-]"
	if e.Err != nil {
		status = fmt.Sprintf("[red]%v[-]", e.Err)
	}

	preview := ""
	if len(e.Data) > 0 {
		n := min(len(e.Data), hexPreviewBytes)
		preview = fmt.Sprintf("% x", e.Data[:n])
		if len(e.Data) > n {
			preview += " .."
		}
	}

	return fmt.Sprintf("[#777777]%5d[-] %s [yellow]%-4s[-] [#00afff]%-20s[-] val=0x%04x len=%-4d %s %s",
		seq, e.Time.Format("15:04:05.000"), e.Direction, e.Request, e.Value, len(e.Data), preview, status)
}

func (m *Monitor) getIntroText() string {
	line1 := "Every vendor control request to the board is shown below"
	line2 := "Hit [#ff0000]q[-] to exit, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s", line1, line2)
}

func (m *Monitor) setupUI() {
	m.tviewapp = tview.NewApplication()

	// --- Intro Pane ---
	m.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	m.intro.SetText(m.getIntroText())
	m.intro.SetBorder(true).SetTitle(monitorTitle).SetTitleColor(tcell.ColorLightBlue)
	m.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	// --- Traffic Pane ---
	m.traffic = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft).
		SetScrollable(true)
	m.traffic.SetBorder(true).SetTitle(monitorTitle)
	m.traffic.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Log Pane ---
	m.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			m.logView.ScrollToEnd()
			m.tviewapp.Draw()
		})
	m.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	m.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Layout ---
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(m.intro, 4, 0, false).
		AddItem(m.traffic, 0, 3, true).
		AddItem(m.logView, 0, 1, false)

	// --- Flush logs after first draw ---
	m.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		m.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(m.logView)
			logging.SetOutput(logWriter)
			close(m.readyChan)
		})
	})

	// --- Input Handling ---
	m.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			m.ossignalChan <- os.Interrupt
			return nil
		case tcell.KeyRune:
			switch string(event.Rune()) {
			case "q", "Q":
				m.ossignalChan <- os.Interrupt
				return nil
			}
		case tcell.KeyUp:
			row, col := m.logView.GetScrollOffset()
			m.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := m.logView.GetScrollOffset()
			m.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	m.tviewapp.SetRoot(layout, true)
}
