// Command hmi is a terminal dashboard for a live run. It subscribes to the
// telemetry subjects the nats datastream publishes and shows the latest
// sample of every observed signal.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell"
	nats "github.com/nats-io/nats.go"
	"github.com/rivo/tview"

	"github.com/sps-lab/ramses-go/internal/pkg/datastreams/natshandler"
)

const logo = `
 ____________________________________________________________
 _/\/\/\/\____/\/\______/\/\______/\/\____/\/\/\/\____/\/\/\_
 _/\/\__/\/\__/\/\__/\/\/\/\/\__/\/\/\/\__/\/\__________/\___
 _/\/\/\/\____/\/\__/\/\__/\/\__/\/\/\/\____/\/\/\____/\/\___
 _/\/\__/\____/\/\__/\/\__/\/\__/\/\__________/\/\____/\_____
 _/\/\__/\/\__/\/\__/\/\__/\/\__/\/\____/\/\/\/\____/\/\/\/\_
 ____________________________________________________________
`

var app = tview.NewApplication()
var table *tview.Table
var header *tview.TextView

type dashboard struct {
	mux    sync.Mutex
	runID  string
	status string
	time   float64
	keys   []string
	values []float64
}

// uiRunning reports whether the first draw has completed. Queueing a draw
// before the application runs would block the calling goroutine, so early
// telemetry only updates the board and lets the first draw pick it up.
func uiRunning(ready <-chan struct{}) bool {
	select {
	case <-ready:
		return true
	default:
		return false
	}
}

func main() {
	server := flag.String("server", nats.DefaultURL, "NATS server URL")
	flag.Parse()

	board := &dashboard{status: "waiting"}

	ready := make(chan struct{})
	var firstDraw sync.Once
	app.SetAfterDrawFunc(func(screen tcell.Screen) {
		firstDraw.Do(func() { close(ready) })
	})

	nc, err := nats.Connect(*server)
	if err != nil {
		log.Fatalln("[HMI]", err)
	}
	defer nc.Close()

	if _, err := nc.Subscribe("ramses.*.frame", func(m *nats.Msg) {
		frame := natshandler.FrameMsg{}
		if err := json.Unmarshal(m.Data, &frame); err != nil {
			return
		}
		board.mux.Lock()
		board.runID = frame.RunID
		board.time = frame.Time
		if frame.Keys != nil {
			board.keys = frame.Keys
		}
		board.values = frame.Values
		board.mux.Unlock()
		if uiRunning(ready) {
			app.QueueUpdateDraw(func() { redraw(board) })
		}
	}); err != nil {
		log.Fatalln("[HMI]", err)
	}

	if _, err := nc.Subscribe("ramses.*.event", func(m *nats.Msg) {
		board.mux.Lock()
		board.status = string(m.Data)
		board.mux.Unlock()
		if uiRunning(ready) {
			app.QueueUpdateDraw(func() { redraw(board) })
		}
	}); err != nil {
		log.Fatalln("[HMI]", err)
	}

	pages := tview.NewPages()
	pages.AddPage("Splash", splash(pages), true, true)
	pages.AddPage("Overview", overview(), true, false)

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(pages, 0, 1, true)

	if err := app.SetRoot(layout, true).Run(); err != nil {
		panic(err)
	}
}

func splash(pages *tview.Pages) tview.Primitive {
	lines := strings.Split(logo, "\n")
	logoWidth := 0
	logoHeight := len(lines)
	for _, line := range lines {
		if len(line) > logoWidth {
			logoWidth = len(line)
		}
	}
	logoBox := tview.NewTextView().
		SetTextColor(tcell.ColorBlue).
		SetDoneFunc(func(key tcell.Key) {
			pages.ShowPage("Overview")
		})

	fmt.Fprint(logoBox, logo)

	frame := tview.NewFrame(tview.NewBox()).
		SetBorders(0, 0, 0, 0, 0, 0).
		AddText("Dynamic Simulation Monitor", true, tview.AlignCenter, tcell.ColorWhite).
		AddText("", true, tview.AlignCenter, tcell.ColorWhite).
		AddText("press enter", true, tview.AlignCenter, tcell.ColorDarkMagenta)

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 5, false).
		AddItem(tview.NewFlex().
			AddItem(tview.NewBox(), 0, 1, false).
			AddItem(logoBox, logoWidth, 1, true).
			AddItem(tview.NewBox(), 0, 1, false), logoHeight, 1, true).
		AddItem(frame, 0, 10, false)
}

func overview() tview.Primitive {
	header = tview.NewTextView().
		SetTextColor(tcell.ColorYellow)
	header.SetBorder(true).SetTitle(" Run ")

	table = tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false).
		SetSeparator(' ')
	table.SetBorder(true).SetTitle(" Observed Signals ")

	table.SetCell(0, 0, headerCell("Signal"))
	table.SetCell(0, 1, headerCell("Value"))

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 3, 0, false).
		AddItem(table, 0, 1, true)
}

func headerCell(text string) *tview.TableCell {
	return tview.NewTableCell(text).
		SetTextColor(tcell.ColorYellow).
		SetAlign(tview.AlignLeft).
		SetSelectable(false)
}

func redraw(board *dashboard) {
	if header == nil || table == nil {
		return
	}
	board.mux.Lock()
	defer board.mux.Unlock()
	header.SetText(fmt.Sprintf(" %v   t=%.3f s   %v", board.runID, board.time, board.status))

	for i, key := range board.keys {
		table.SetCell(i+1, 0, tview.NewTableCell(key).
			SetTextColor(tcell.ColorDarkCyan).
			SetAlign(tview.AlignLeft))
		value := ""
		if i < len(board.values) {
			value = strconv.FormatFloat(board.values[i], 'f', 5, 64)
		}
		table.SetCell(i+1, 1, tview.NewTableCell(value).
			SetTextColor(tcell.ColorWhite).
			SetAlign(tview.AlignRight))
	}
}
