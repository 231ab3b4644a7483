package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
)

var flagSaveCheckpoint bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load a conversation script and build the persistent catalog",
	Long: `Load the configured conversation script and persist everything the
serve and interact commands need: the template catalog with its search
index and legality masks, the entity dictionary, and the vocabulary.
The script's conversations are replayed through the dialog core so
every scripted entity value and token gets a stable ID.

Example:
  elsabot index --config bot.yaml`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagSaveCheckpoint, "save-checkpoint", false, "Also write a fresh tracker checkpoint")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	bot, err := buildBotWithStore(ctx, cfg, store)
	if err != nil {
		store.Close()
		return err
	}
	defer bot.Close(ctx)

	// Replaying the scripted conversations populates the vocabulary and
	// the entity value tables as a side effect.
	batches, err := bot.Script.Replay(bot.NewState)
	if err != nil {
		return err
	}
	turns := 0
	for _, b := range batches {
		for _, l := range b.Lengths {
			turns += l
		}
	}

	if err := bot.Templates.Save(ctx, store); err != nil {
		return err
	}
	if flagSaveCheckpoint && cfg.DataDir != "" {
		ckpt := filepath.Join(cfg.DataDir, cfg.Tracker.Checkpoint)
		if err := bot.Tracker.Save(ckpt); err != nil {
			return err
		}
		slog.Info("wrote tracker checkpoint", "path", ckpt)
	}

	fmt.Printf("indexed %d templates, %d entities, %d conversations (%d turns), vocab %d\n",
		bot.Templates.Len(), bot.Entities.Len(), len(batches), turns, bot.Vocab.Size())
	return nil
}
