package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/SatyaChamana/Codelens/internal/embedder"
	"github.com/SatyaChamana/Codelens/internal/llm"
	"github.com/SatyaChamana/Codelens/internal/rag"
	"github.com/SatyaChamana/Codelens/internal/retriever"
	"github.com/SatyaChamana/Codelens/internal/store"
)

var (
	flagK          int
	flagNoRerank   bool
	flagLanguage   string
	flagUnitType   string
	flagPathPrefix string
	flagPathGlob   string
	flagPlain      bool
)

var askCmd = &cobra.Command{
	Use:   "ask <repo> <question>",
	Short: "Ask a single question about an indexed repository",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]
		question := strings.Join(args[1:], " ")

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		emb := embedder.NewOllamaEmbedder(flagOllama, flagModel)
		chat := llm.NewOllamaChat(flagOllama, flagChatModel)
		engine := rag.New(retriever.New(st, emb), chat)

		answer, err := engine.Ask(cmd.Context(), repo, question, nil, retriever.Request{
			TopK:   flagK,
			Rerank: !flagNoRerank,
			Filters: store.Filters{
				Language:   flagLanguage,
				UnitType:   flagUnitType,
				PathPrefix: flagPathPrefix,
				PathGlob:   flagPathGlob,
			},
		})
		if err != nil {
			return err
		}

		fmt.Println(renderAnswer(answer.Text))

		if len(answer.Sources) > 0 {
			fmt.Println("Sources:")
			for _, s := range answer.Sources {
				fmt.Printf("  %s:%d-%d [%s %s] (%.2f)\n",
					s.Entry.FilePath, s.Entry.StartLine, s.Entry.EndLine,
					s.Entry.UnitType, s.Entry.Name, s.Score)
			}
		}
		return nil
	},
}

// renderAnswer formats markdown for the terminal, falling back to plain
// text when rendering is unavailable.
func renderAnswer(text string) string {
	if flagPlain {
		return text
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func init() {
	askCmd.Flags().IntVar(&flagK, "k", retriever.DefaultTopK, "number of chunks to retrieve")
	askCmd.Flags().BoolVar(&flagNoRerank, "no-rerank", false, "skip identifier-overlap re-ranking")
	askCmd.Flags().StringVar(&flagLanguage, "language", "", "filter chunks by language")
	askCmd.Flags().StringVar(&flagUnitType, "type", "", "filter chunks by unit type (function, method, class, module, block)")
	askCmd.Flags().StringVar(&flagPathPrefix, "path-prefix", "", "filter chunks by file path prefix")
	askCmd.Flags().StringVar(&flagPathGlob, "path-glob", "", "filter chunks by file path glob (supports **)")
	askCmd.Flags().BoolVar(&flagPlain, "plain", false, "disable markdown rendering")
	rootCmd.AddCommand(askCmd)
}
