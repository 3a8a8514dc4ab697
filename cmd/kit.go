// qmakestep kit
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qobs-build/qmakestep/internal/kit"
	"github.com/qobs-build/qmakestep/internal/msg"
	"github.com/qobs-build/qmakestep/internal/project"
	"github.com/spf13/cobra"
)

// openLocalIndex loads the kit index of the current directory.
func openLocalIndex() (*kit.Index, string) {
	cwd, err := os.Getwd()
	if err != nil {
		msg.Fatal("could not get current directory: %v", err)
	}
	idx, err := kit.OpenIndex(cwd)
	if errors.Is(err, os.ErrNotExist) {
		msg.Fatal("no %s in %s; create one to start a local kit index", kit.IndexFilename, cwd)
	} else if err != nil {
		msg.Fatal("%v", err)
	}
	return idx, cwd
}

func doKitAdd(name, file, description string) {
	idx, cwd := openLocalIndex()

	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	if _, err := project.ParseKitFile(path, project.NewConfigEnv(cwd)); err != nil {
		msg.Fatal("invalid kit file: %v", err)
	}

	if idx.Add(name, kit.Entry{File: filepath.ToSlash(file), Description: description}) {
		msg.Warn("replaced existing kit %s", name)
	}
	if err := idx.Save(cwd); err != nil {
		msg.Fatal("failed to save index: %v", err)
	}
	msg.Info("added kit %s -> %s", name, file)
}

func doKitRemove(name string) {
	idx, cwd := openLocalIndex()
	if !idx.Remove(name) {
		msg.Warn("kit %s not found", name)
		return
	}
	if err := idx.Save(cwd); err != nil {
		msg.Fatal("failed to save index: %v", err)
	}
	msg.Info("removed kit %s", name)
}

func doKitSearch(term string, refresh bool) {
	idx, err := kit.GlobalIndex(refresh)
	if err != nil {
		msg.Fatal("%v", err)
	}
	names := idx.Search(term)
	for i, name := range names {
		e := idx.Kits[name]
		if e.Description != "" {
			fmt.Fprintf(msg.Out, "%d. %s -> %s (%s)\n", i+1, name, e.File, e.Description)
		} else {
			fmt.Fprintf(msg.Out, "%d. %s -> %s\n", i+1, name, e.File)
		}
	}
	if len(names) == 0 {
		msg.Warn("no kits match %q", term)
	} else {
		msg.Info("found %d kits", len(names))
	}
}

var kitCmd = &cobra.Command{
	Use:   "kit",
	Short: "Manage kit indexes",
}

var kitAddCmd = &cobra.Command{
	Use:   "add <name> <file>",
	Short: "Add a kit file to the local index",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		doKitAdd(args[0], args[1], description)
	},
}

var kitRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a kit from the local index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doKitRemove(args[0])
	},
}

var kitUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the global cached kit index",
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := kit.GlobalIndex(true); err != nil {
			msg.Fatal("%v", err)
		}
		msg.Info("kit index is up to date")
	},
}

var kitSearchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search the global kit index",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		term := ""
		if len(args) > 0 {
			term = args[0]
		}
		refresh, _ := cmd.Flags().GetBool("update")
		doKitSearch(term, refresh)
	},
}

func init() {
	rootCmd.AddCommand(kitCmd)
	kitAddCmd.Flags().StringP("description", "d", "", "short description shown by search")
	kitSearchCmd.Flags().BoolP("update", "u", false, "pull the kit index before searching")
	kitCmd.AddCommand(kitAddCmd, kitRemoveCmd, kitUpdateCmd, kitSearchCmd)
}
