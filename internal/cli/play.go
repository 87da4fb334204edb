package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mcoot/memorygrid/internal/client"
	"github.com/mcoot/memorygrid/internal/client/play"
	"github.com/mcoot/memorygrid/internal/dependencies/clock"
	"github.com/mcoot/memorygrid/internal/model"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a session interactively",
	}

	cmd.AddCommand(newPlayCreateCmd())
	cmd.AddCommand(newPlayJoinCmd())

	return cmd
}

func newPlayCreateCmd() *cobra.Command {
	var name string
	var gridSize int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session and lead it as master",
		RunE: func(cmd *cobra.Command, args []string) error {
			return playInteractive(cmd.Context(), func(ctx context.Context, conn *client.Conn) (*model.JoinResult, error) {
				return conn.CreateSession(ctx, name, gridSize)
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (required)")
	cmd.Flags().IntVarP(&gridSize, "grid", "g", model.DefaultGridSize, "Grid size")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPlayJoinCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "join <code>",
		Short: "Join a session as a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return playInteractive(cmd.Context(), func(ctx context.Context, conn *client.Conn) (*model.JoinResult, error) {
				return conn.JoinSession(ctx, model.SessionCode(args[0]), name)
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func playInteractive(ctx context.Context, enter func(context.Context, *client.Conn) (*model.JoinResult, error)) error {
	conn, err := dialSession(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	seat := newTable(conn, os.Stdout, play.DefaultTiming(), cliLogger())
	defer seat.machine.Close()

	result, err := enter(ctx, conn)
	if err != nil {
		return err
	}
	seat.joined(result)

	return seat.run(ctx, os.Stdin)
}

// console serializes writes from the input loop and the event goroutines
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

func (c *console) grid(size int, lit ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	printGrid(c.w, size, lit...)
}

func (c *console) leaderboard(entries []model.LeaderboardEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	printLeaderboard(c.w, entries)
}

// table is one interactive seat at a session
type table struct {
	conn    *client.Conn
	machine *play.Machine
	out     *console

	mu       sync.Mutex
	code     model.SessionCode
	gridSize int
}

func newTable(conn *client.Conn, w io.Writer, timing play.Timing, logger *slog.Logger) *table {
	t := &table{conn: conn, out: &console{w: w}}
	t.machine = play.New(conn, clock.New(), timing, play.Hooks{
		StateChanged:    t.stateChanged,
		Cell:            t.cell,
		AttemptRecorded: t.attemptRecorded,
		Ended:           t.ended,
		Disconnected:    t.disconnected,
	}, logger)
	t.machine.Attach(conn)
	return t
}

func (t *table) joined(result *model.JoinResult) {
	t.mu.Lock()
	t.code = result.Session.Code
	t.gridSize = result.Session.GridSize
	t.mu.Unlock()

	t.machine.Joined(result)
	t.out.printf("Session %s (%dx%d grid), you are %s\n",
		result.Session.Code, result.Session.GridSize, result.Session.GridSize, result.Member.Role)
	t.out.printf("Type 'help' for commands\n")
}

func (t *table) session() (model.SessionCode, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.code, t.gridSize
}

func (t *table) stateChanged(_, to play.State) {
	_, size := t.session()
	switch to {
	case play.BuildingSequence:
		t.out.printf("Build a pattern: enter cell numbers (0-%d), then 'send', or 'gen' for a random one\n", size*size-1)
	case play.ShowingPattern:
		t.out.printf("Watch the pattern...\n")
	case play.PlayerTurn:
		t.out.printf("Your turn: enter the cells in order\n")
	case play.Waiting:
		t.out.printf("Waiting for the next round\n")
	case play.RoundComplete:
		t.out.printf("Round complete\n")
	}
}

func (t *table) cell(step, cell int, lit bool) {
	if !lit {
		return
	}
	_, size := t.session()
	t.out.printf("Step %d\n", step+1)
	t.out.grid(size, cell)
}

func (t *table) attemptRecorded(m model.MemberSummary, correct bool, points, total int) {
	verdict := "wrong"
	if correct {
		verdict = "correct"
	}
	t.out.printf("%s: %s, +%d (total %d)\n", m.DisplayName, verdict, points, total)
}

func (t *table) ended(leaderboard []model.LeaderboardEntry, reason string) {
	t.out.printf("Session ended (%s)\n", reason)
	t.out.leaderboard(leaderboard)
}

func (t *table) disconnected(err error) {
	t.out.printf("Connection lost: %v\n", err)
}

// run reads commands until input ends, the connection drops or the session finishes
func (t *table) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.conn.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := t.exec(ctx, line)
			if err != nil {
				t.out.printf("Error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

const playHelp = `Commands:
  start          start the session (master)
  <cells>        select cells, e.g. "3 7 12"
  send           reveal the pattern you built (master)
  gen            reveal a generated pattern (master)
  next           advance to the next round (master)
  end            end the session (master)
  members        list members
  leaderboard    show the leaderboard
  grid           show the empty board with cell numbers
  quit           leave
`

func (t *table) exec(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	code, size := t.session()

	if cells, ok := parseCells(line); ok {
		for _, c := range cells {
			if err := t.machine.Select(ctx, c); err != nil {
				return false, err
			}
		}
		if v := t.machine.View(); v.State == play.BuildingSequence {
			t.out.printf("Pattern so far: %v\n", v.Draft)
		}
		return false, nil
	}

	switch strings.ToLower(line) {
	case "help", "?":
		t.out.printf("%s", playHelp)
	case "start":
		return false, t.conn.StartSession(ctx, code)
	case "send":
		return false, t.machine.Send(ctx)
	case "gen":
		_, err := t.conn.StartGeneratedRound(ctx, code)
		return false, err
	case "next":
		return false, t.conn.NextRound(ctx, code)
	case "end":
		leaderboard, err := t.conn.EndSession(ctx, code)
		if err != nil {
			return false, err
		}
		t.out.leaderboard(leaderboard)
	case "members":
		members, err := t.conn.GetMemberList(ctx, code)
		if err != nil {
			return false, err
		}
		for _, m := range members {
			t.out.printf("  %s - %s, %d points%s\n", m.DisplayName, m.Role, m.Score, offlineTag(m.Connected))
		}
	case "leaderboard":
		leaderboard, err := t.conn.GetLeaderboard(ctx, code)
		if err != nil {
			return false, err
		}
		t.out.leaderboard(leaderboard)
	case "grid":
		t.out.grid(size)
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", line)
	}
	return false, nil
}

// parseCells reads a space or comma separated list of cell indices
func parseCells(line string) ([]int, bool) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) == 0 {
		return nil, false
	}
	cells := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		cells = append(cells, n)
	}
	return cells, true
}
