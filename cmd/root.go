package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/SatyaChamana/Codelens/internal/store"
)

var (
	flagData      string
	flagOllama    string
	flagModel     string
	flagChatModel string
)

var rootCmd = &cobra.Command{
	Use:   "codelens",
	Short: "Local code intelligence powered by RAG",
	Long: `Codelens indexes source repositories into structural, language-aware
chunks and answers questions about them using local models via Ollama.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagData, "data", "", "data directory (default ~/.codelens)")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", envOr("OLLAMA_HOST", "http://localhost:11434"), "ollama base URL")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", envOr("CODELENS_EMBED_MODEL", "nomic-embed-text"), "embedding model")
	rootCmd.PersistentFlags().StringVar(&flagChatModel, "chat-model", envOr("CODELENS_CHAT_MODEL", "qwen3:8b"), "generative model for answers")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// dataDir resolves the data directory, creating it if needed.
func dataDir() (string, error) {
	dir := flagData
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".codelens")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

// openStore opens the shared index database under the data directory.
func openStore() (*store.SQLiteStore, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return st, nil
}
