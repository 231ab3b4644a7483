package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/elsabot/elsabot/pkg/cli"
)

var interactCmd = &cobra.Command{
	Use:   "interact",
	Short: "Talk to the bot in the terminal",
	Long: `Start an interactive dialog shell.

Type "debug" to dump the last turn's state, "reset" to start the
conversation over, and Ctrl-D to leave.`,
	RunE: runInteract,
}

func runInteract(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot, err := buildBot(ctx, cfg)
	if err != nil {
		return err
	}
	defer bot.Close(context.Background())

	styles := cli.NewStyles(cli.DefaultTheme)
	userPrompt := styles.Label.Render("you>")
	botPrompt := styles.Title.Render("bot>")
	dim := styles.Help

	fmt.Println(styles.Title.Render("elsabot"))
	fmt.Println(dim.Render("templates: " + fmt.Sprint(bot.Templates.Len()) + "  (Ctrl-D to leave)"))

	sid := uuid.NewString()
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s ", userPrompt)
		if !sc.Scan() {
			fmt.Println()
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		reply, err := bot.Sessions.Respond(ctx, sid, line)
		if err != nil {
			return err
		}
		if strings.Contains(reply, "\n") {
			// Multi-line replies (the debug dump) print unstyled.
			fmt.Println(reply)
			continue
		}
		fmt.Printf("%s %s\n", botPrompt, lipgloss.NewStyle().Render(reply))

		// The session dies after a goodbye; start a fresh one.
		if bot.Sessions.Len() == 0 {
			sid = uuid.NewString()
			fmt.Println(dim.Render("(session ended)"))
		}
	}
}
