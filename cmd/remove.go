package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <repo>",
	Short: "Delete an indexed repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteCollection(cmd.Context(), repo); err != nil {
			return err
		}
		fmt.Printf("Removed %q.\n", repo)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
