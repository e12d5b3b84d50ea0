package main

import (
	"os"

	"github.com/spf13/cobra"
)

var clinicPath string

var rootCmd = &cobra.Command{
	Use:   "availctl",
	Short: "Evaluate provider availability from a clinic file",
	Long: `availctl answers availability questions offline, from a YAML file that
describes providers, their weekly hours, shared resources and the current
bookings. It applies the same rules as the API.

Examples:
  availctl slots --clinic clinic.yaml --provider "Dr. Molar" --date 2026-10-19 --duration 30
  availctl check --clinic clinic.yaml --provider "Dr. Molar" --start 2026-10-19T09:00 --end 2026-10-19T10:00
  availctl validate --clinic clinic.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&clinicPath, "clinic", "c", "clinic.yaml", "Clinic file")
	rootCmd.AddCommand(slotsCmd, checkCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
