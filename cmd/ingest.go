package cmd

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/SatyaChamana/Codelens/internal/embedder"
	"github.com/SatyaChamana/Codelens/internal/ingest"
)

var (
	flagRepo    string
	flagWorkers int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Index a repository for retrieval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		repo := flagRepo
		if repo == "" {
			repo = filepath.Base(root)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		emb := embedder.NewOllamaEmbedder(flagOllama, flagModel)
		pipeline := ingest.New(st, emb, ingest.Options{Workers: flagWorkers})

		fmt.Printf("Indexing %s into %q...\n", root, repo)

		report, err := pipeline.Ingest(cmd.Context(), root, repo)
		if err != nil {
			return err
		}

		fmt.Printf("\nDone in %s\n", report.Duration.Round(time.Millisecond))
		fmt.Printf("  Files:   %d parsed, %d degraded, %d skipped\n",
			report.FilesParsed, report.FilesDegraded, report.FilesSkipped)
		fmt.Printf("  Chunks:  %d indexed, %d failed\n",
			report.ChunksIndexed, report.ChunksFailed)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&flagRepo, "repo", "", "repository name (default: directory basename)")
	ingestCmd.Flags().IntVar(&flagWorkers, "workers", runtime.NumCPU(), "parallel workers")
	rootCmd.AddCommand(ingestCmd)
}
