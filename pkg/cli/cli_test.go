package cli_test

import (
	"strings"
	"testing"

	"github.com/elsabot/elsabot/pkg/cli"
)

func TestTranscriptRender(t *testing.T) {
	tr := cli.Transcript{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "elsabot",
		Turns: []cli.Turn{
			{User: "hello", Bot: "hi there"},
			{User: "bye", Bot: "see you"},
		},
	}
	out := tr.Render(40)
	for _, want := range []string{"elsabot", "hello", "hi there", "see you"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestTranscriptMaxTurns(t *testing.T) {
	tr := cli.Transcript{
		Styles:   cli.NewStyles(cli.DefaultTheme),
		Title:    "t",
		MaxTurns: 1,
		Turns: []cli.Turn{
			{User: "first", Bot: "one"},
			{User: "second", Bot: "two"},
		},
	}
	out := tr.Render(40)
	if strings.Contains(out, "first") {
		t.Fatalf("old turn not trimmed:\n%s", out)
	}
	if !strings.Contains(out, "second") {
		t.Fatalf("latest turn missing:\n%s", out)
	}
}

func TestTranscriptWrapsLongLines(t *testing.T) {
	long := strings.Repeat("word ", 30)
	tr := cli.Transcript{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  "t",
		Turns:  []cli.Turn{{User: long, Bot: "ok"}},
	}
	out := tr.Render(32)
	for _, line := range strings.Split(out, "\n") {
		// Styled lines carry escape codes; check visible width loosely
		// by ensuring no line holds the whole unwrapped text.
		if strings.Contains(line, strings.TrimSpace(long)) {
			t.Fatalf("long line not wrapped:\n%s", line)
		}
	}
}
