package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
	"github.com/jihwankim/chaos-monkey/pkg/injection/shell"
)

var listCmd = &cobra.Command{
	Use:   "list [WORKSPACE]",
	Args:  cobra.MaximumNArgs(1),
	Short: "List chaos groups and commands",
	Long: `Prints every chaos command grouped by group name. The container group
appears only when container targets are configured.`,
	RunE: listActions,
}

func init() {
	listCmd.Flags().Bool("groups", false, "only print group names")
}

func listActions(cmd *cobra.Command, args []string) error {
	groupsOnly, _ := cmd.Flags().GetBool("groups")

	workspace := ""
	if len(args) == 1 {
		workspace = args[0]
	}

	cfg, err := loadConfig(workspace)
	if err != nil {
		return err
	}

	// Listing never touches the daemon, so no docker client is needed
	catalog := chaos.NewCatalog(buildProviders(cfg, shell.NewHostExecutor(), nil)...)

	if groupsOnly {
		for _, group := range catalog.Groups() {
			fmt.Println(group)
		}
		return nil
	}

	return printCatalog(catalog)
}

func printCatalog(catalog *chaos.Catalog) error {
	byGroup := catalog.ByGroup()
	groups := make([]string, 0, len(byGroup))
	for group := range byGroup {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tCOMMAND\tDESCRIPTION")
	for _, group := range groups {
		for _, action := range byGroup[group] {
			fmt.Fprintf(w, "%s\t%s\t%s\n", group, action.Command, action.Description)
		}
	}
	return w.Flush()
}
