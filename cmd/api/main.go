package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskhive/core/cmd/api/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskhive",
		Short: "TaskHive API Server",
		Long:  `TaskHive is a collaborative task tracker where task creators share their tasks with other users through role-scoped invitations.`,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewUserCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
