package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/srg/hrmon/internal/device"
)

// picker is the device list overlay. It only tracks the cursor; the list
// itself comes from the latest snapshot.
type picker struct {
	cursor int
}

func (p *picker) move(delta, n int) {
	if n == 0 {
		p.cursor = 0
		return
	}
	p.cursor += delta
	if p.cursor < 0 {
		p.cursor = 0
	}
	if p.cursor >= n {
		p.cursor = n - 1
	}
}

// selected returns the device under the cursor
func (p *picker) selected(devices []device.DiscoveredDevice) (device.DiscoveredDevice, bool) {
	if len(devices) == 0 {
		return device.DiscoveredDevice{}, false
	}
	p.move(0, len(devices))
	return devices[p.cursor], true
}

func (p *picker) view(devices []device.DiscoveredDevice, scanning bool, spin string, sym symbols, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Available Devices"))
	b.WriteString("\n")

	if len(devices) == 0 {
		b.WriteString(mutedStyle.Render("No devices found. Please wait..."))
	} else {
		p.move(0, len(devices))
		for i, d := range devices {
			line := fmt.Sprintf("%s  %s", d.Name, mutedStyle.Render(d.ID))
			if i == p.cursor {
				b.WriteString(selectedStyle.Render(sym.Cursor + " " + line))
			} else {
				b.WriteString("  " + line)
			}
			if i < len(devices)-1 {
				b.WriteString("\n")
			}
		}
	}

	if scanning {
		b.WriteString("\n\n" + spin + " scanning")
	}
	b.WriteString("\n" + hintStyle.Render("↑/↓ move  enter: connect  esc: close"))

	style := pickerStyle
	if width > 4 {
		style = style.Width(lipgloss.Width(b.String()) + 2)
		if w := width - 4; style.GetWidth() > w {
			style = style.Width(w)
		}
	}
	return style.Render(b.String())
}
