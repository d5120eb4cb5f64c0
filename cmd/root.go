package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance system",
	Long: `Face Attendance identifies employees from a camera image using face
embeddings and records their daily check-in and check-out.

Embeddings are computed by an InsightFace server (EMBEDDING_URL) and stored
in PostgreSQL with pgvector, MariaDB/MySQL or a local SQLite file
(DATABASE_URL).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
