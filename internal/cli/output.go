package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcoot/memorygrid/internal/api/response"
	"github.com/mcoot/memorygrid/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case response.Identity:
		o.printIdentity(v)
	case response.AuthResponse:
		o.printIdentity(v.Identity)
		fmt.Fprintf(o.w, "Token: %s\n", v.Token)
		fmt.Fprintf(o.w, "Expires: %s\n", v.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	case response.Session:
		o.printSession(v)
	case []model.MemberSummary:
		o.printMembers(v)
	case []model.LeaderboardEntry:
		printLeaderboard(o.w, v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printIdentity(i response.Identity) {
	guestStr := "no"
	if i.IsGuest {
		guestStr = "yes"
	}
	fmt.Fprintf(o.w, "Identity: %s (%s)\n", i.DisplayName, i.ID)
	fmt.Fprintf(o.w, "Guest: %s\n", guestStr)
}

func (o *Output) printSession(s response.Session) {
	fmt.Fprintf(o.w, "Session: %s\n", s.Code)
	fmt.Fprintf(o.w, "Status: %s\n", s.Status)
	fmt.Fprintf(o.w, "Grid Size: %d\n", s.GridSize)
	fmt.Fprintf(o.w, "Round: %d (%d played)\n", s.CurrentRound, s.RoundsPlayed)
	fmt.Fprintf(o.w, "Members (%d):\n", len(s.Members))
	for _, m := range s.Members {
		fmt.Fprintf(o.w, "  - %s - %s, %d points%s\n", m.DisplayName, m.Role, m.Score, offlineTag(m.Connected))
	}
}

func (o *Output) printMembers(members []model.MemberSummary) {
	fmt.Fprintf(o.w, "Members (%d):\n", len(members))
	for _, m := range members {
		fmt.Fprintf(o.w, "  - %s - %s, %d points%s\n", m.DisplayName, m.Role, m.Score, offlineTag(m.Connected))
	}
}

func printLeaderboard(w io.Writer, entries []model.LeaderboardEntry) {
	fmt.Fprintln(w, "Leaderboard:")
	for i, e := range entries {
		fmt.Fprintf(w, "  %d. %-16s %5d%s\n", i+1, e.DisplayName, e.Score, offlineTag(e.Connected))
	}
}

func offlineTag(connected bool) string {
	if connected {
		return ""
	}
	return " [offline]"
}

// printGrid draws a size×size board with the given cells lit
func printGrid(w io.Writer, size int, lit ...int) {
	on := make(map[int]bool, len(lit))
	for _, c := range lit {
		on[c] = true
	}

	var b strings.Builder
	b.WriteString("    ")
	for col := 0; col < size; col++ {
		fmt.Fprintf(&b, "%3d", col)
	}
	b.WriteString("\n   +" + strings.Repeat("---", size) + "+\n")
	for row := 0; row < size; row++ {
		fmt.Fprintf(&b, "%2d |", row)
		for col := 0; col < size; col++ {
			if on[row*size+col] {
				b.WriteString(" # ")
			} else {
				b.WriteString(" . ")
			}
		}
		b.WriteString("|\n")
	}
	b.WriteString("   +" + strings.Repeat("---", size) + "+\n")
	_, _ = io.WriteString(w, b.String())
}
