package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yugisim/duel-server-go/internal/cards"
)

var (
	checkBanlistFile string
	checkFormat      string
	checkCardsFile   string
)

var checkDeckCmd = &cobra.Command{
	Use:   "check-deck [deck files...]",
	Short: "Validate deck lists against a banlist",
	Long: `check-deck parses JSON, YAML or TOML deck lists, reports their size and
checks copy limits. With --banlist and --format the format's limits apply,
otherwise only the three-copy maximum does. With --cards unknown names are reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var banlist cards.Banlist
		if checkBanlistFile != "" {
			lists, err := cards.LoadBanlistsFile(checkBanlistFile)
			if err != nil {
				return err
			}
			list, ok := lists.Format(checkFormat)
			if !ok {
				return fmt.Errorf("format %q not found in %s", checkFormat, checkBanlistFile)
			}
			banlist = list
		}

		var catalog cards.Lookup
		if checkCardsFile != "" {
			c, err := cards.LoadYGOProDeckFile(checkCardsFile)
			if err != nil {
				return err
			}
			catalog = c
		}

		failed := 0
		for _, path := range args {
			if !checkDeck(cmd.OutOrStdout(), path, banlist, catalog) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d decks failed validation", failed, len(args))
		}
		return nil
	},
}

func init() {
	checkDeckCmd.Flags().StringVar(&checkBanlistFile, "banlist", "", "banlists JSON file ({format: {card: limit}})")
	checkDeckCmd.Flags().StringVar(&checkFormat, "format", "TCG", "banlist format to apply")
	checkDeckCmd.Flags().StringVar(&checkCardsFile, "cards", "", "YGOProDeck card dump used to flag unknown cards")
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}

// checkDeck prints the report for one deck file and reports whether it passed.
func checkDeck(w io.Writer, path string, banlist cards.Banlist, catalog cards.Lookup) bool {
	list, err := cards.LoadDeckListFile(path)
	if err != nil {
		fmt.Fprintf(w, "%s %s: %v\n", color.RedString("✗"), path, err)
		return false
	}

	fmt.Fprintf(w, "%s %s\n", color.CyanString("Deck:"), color.HiWhiteString(list.Name))
	fmt.Fprintf(w, "  main %d, extra %d, side %d\n", list.MainCount(), list.ExtraCount(), list.SideCount())

	ok := true
	if err := list.CheckSize(); err != nil {
		fmt.Fprintf(w, "  %s %v\n", color.RedString("✗"), err)
		ok = false
	}
	for _, v := range banlist.Validate(list) {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("✗"), v)
		ok = false
	}

	if catalog != nil {
		for _, part := range [][]cards.Entry{list.Main, list.Extra, list.Side} {
			for _, e := range part {
				if _, found := catalog.Lookup(e.Name); !found {
					fmt.Fprintf(w, "  %s unknown card %q will be skipped\n", color.YellowString("!"), e.Name)
				}
			}
		}
	}

	if ok {
		fmt.Fprintf(w, "  %s legal\n", color.GreenString("✓"))
	}
	return ok
}
