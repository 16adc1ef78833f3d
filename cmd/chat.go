package cmd

import (
	"github.com/spf13/cobra"

	"github.com/SatyaChamana/Codelens/internal/embedder"
	"github.com/SatyaChamana/Codelens/internal/llm"
	"github.com/SatyaChamana/Codelens/internal/rag"
	"github.com/SatyaChamana/Codelens/internal/retriever"
	"github.com/SatyaChamana/Codelens/internal/tui"
)

var flagChatK int

var chatCmd = &cobra.Command{
	Use:   "chat <repo>",
	Short: "Interactive chat about an indexed repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		emb := embedder.NewOllamaEmbedder(flagOllama, flagModel)
		chat := llm.NewOllamaChat(flagOllama, flagChatModel)
		engine := rag.New(retriever.New(st, emb), chat)

		return tui.Run(engine, repo, flagChatK)
	},
}

func init() {
	chatCmd.Flags().IntVar(&flagChatK, "k", 10, "number of chunks to retrieve per question")
	rootCmd.AddCommand(chatCmd)
}
