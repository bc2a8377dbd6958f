// Command drill plays a deck through the local speakers: each foreign phrase,
// a rehearsal pause, then its English translation. Completed items are
// reported back so play counts stay current.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"langu/internal/util"
	"langu/pkg/domain"
	"langu/pkg/languclient"
	"langu/pkg/playback"
)

func main() {
	defaultPath, err := playback.DefaultSettingsPath()
	if err != nil {
		defaultPath = "langu-settings.yaml"
	}
	var (
		settingsPath = flag.String("settings", defaultPath, "settings file")
		deckID       = flag.String("deck", "", "deck to play")
		list         = flag.Bool("list", false, "list decks and exit")
		server       = flag.String("server", "", "API base URL (overrides settings)")
		foreignLang  = flag.String("foreign-lang", "", "foreign voice language code (overrides settings)")
		foreignVoice = flag.String("foreign-voice", "", "foreign voice name (overrides settings)")
		englishVoice = flag.String("english-voice", "", "english voice name (overrides settings)")
		pause        = flag.Float64("pause", 0, "pause as a multiple of the foreign clip length")
		save         = flag.Bool("save", false, "store the overrides in the settings file")
		logLevel     = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()
	util.InitLogger(*logLevel)

	store := playback.NewYAMLSettingsStore(*settingsPath)
	settings, err := store.Load()
	if err != nil {
		util.Fatal("failed to load settings", "path", *settingsPath, "err", err)
	}
	if *server != "" {
		settings.ServerURL = *server
	}
	if *foreignLang != "" {
		settings.ForeignVoice.LanguageCode = *foreignLang
	}
	if *foreignVoice != "" {
		settings.ForeignVoice.Name = *foreignVoice
	}
	if *englishVoice != "" {
		settings.EnglishVoice.Name = *englishVoice
	}
	if *pause > 0 {
		settings.PauseFactor = *pause
	}
	if *save {
		if err := store.Save(settings); err != nil {
			util.Fatal("failed to save settings", "path", *settingsPath, "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	client := languclient.NewClient(settings.ServerURL, 0)

	if *list {
		if err := listDecks(ctx, client); err != nil {
			util.Fatal("failed to list decks", "err", err)
		}
		return
	}
	if *deckID == "" {
		fmt.Fprintln(os.Stderr, "usage: drill -deck <id> [flags] | drill -list")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := drill(ctx, client, settings, *deckID); err != nil {
		util.Fatal("drill failed", "deck_id", *deckID, "err", err)
	}
}

func listDecks(ctx context.Context, client *languclient.Client) error {
	decks, err := client.ListDecks(ctx)
	if err != nil {
		return err
	}
	for _, deck := range decks {
		fmt.Printf("%s\t%s\t%s\tplays=%d\n", deck.ID, deck.LanguageCode, deck.Name, deck.PlayCount)
	}
	return nil
}

func drill(ctx context.Context, client *languclient.Client, settings playback.Settings, deckID string) error {
	playlist, err := client.Playlist(ctx, deckID)
	if err != nil {
		return fmt.Errorf("load playlist: %w", err)
	}
	if len(playlist) == 0 {
		fmt.Println("deck has no sections")
		return nil
	}

	byID := make(map[string]domain.PlaylistItem, len(playlist))
	items := make([]playback.Item, 0, len(playlist))
	for _, entry := range playlist {
		byID[entry.SectionID] = entry
		items = append(items, playback.Item{
			ID:         entry.SectionID,
			ForeignURL: languclient.AudioURL(entry.ForeignURL, settings.ForeignVoice),
			NativeURL:  languclient.AudioURL(entry.EnglishURL, settings.EnglishVoice),
		})
	}

	player := playback.NewExecPlayer(settings.Player, settings.PlayerArgs...)
	controller := playback.NewController(player, client,
		playback.WithPauseFactor(settings.PauseFactor),
		playback.WithOnPlayed(func(ctx context.Context, item playback.Item) error {
			entry := byID[item.ID]
			fmt.Printf("%d. %s\n   %s\n", entry.Position+1, entry.ForeignText, entry.EnglishText)
			_, _, err := client.RecordPlay(ctx, item.ID)
			return err
		}),
	)

	results := controller.PlaySequence(ctx, items)
	var failed int
	for _, res := range results {
		switch {
		case res.Err != nil && errors.Is(res.Err, context.Canceled):
		case res.Err != nil:
			failed++
			fmt.Fprintf(os.Stderr, "section %s: %v\n", res.ItemID, res.Err)
		case res.HookErr != nil:
			fmt.Fprintf(os.Stderr, "section %s played but was not recorded: %v\n", res.ItemID, res.HookErr)
		}
	}
	if failed == len(results) {
		return fmt.Errorf("no section could be played")
	}
	return nil
}
