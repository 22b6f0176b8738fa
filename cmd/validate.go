// =============================================================================
// Fiscal Report Transcriber - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks every profile in the
// configs directory without processing any file.
//
// COMMAND USAGE:
//   transcriber validate [--log validation.log]
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/fiscal-transcriber/internal/config"
	"github.com/ginjaninja78/fiscal-transcriber/internal/validation"
)

// validationLog is the optional file the report is written to.
var validationLog string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the profiles without processing",
	Long: `The validate command loads every profile in the configs directory, compiles
its rule set and reports errors and warnings.

The command fails when any profile has an error. Warnings are printed but do
not fail the command.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validationLog, "log", "", "Also write the report to this file")
}

func runValidate() error {
	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	if err := applyConfigLogLevel(mainConfig); err != nil {
		return err
	}

	profiles, err := config.LoadProfiles(mainConfig.ConfigsDir)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	var errs []*validation.ValidationError
	for _, profile := range profiles {
		profileErrs := validation.ValidateProfile(profile)
		logger.Debug("Validated profile",
			zap.String("profile", profile.ProfileCode),
			zap.String("source", profile.SourceFile),
			zap.Int("issues", len(profileErrs)),
		)
		errs = append(errs, profileErrs...)
	}

	fmt.Printf("Validated %d profile(s) in %s\n\n", len(profiles), mainConfig.ConfigsDir)
	fmt.Println(validation.FormatErrors(errs))

	if validationLog != "" {
		if err := validation.WriteErrorLog(errs, validationLog); err != nil {
			return err
		}
	}

	if validation.HasErrors(errs) {
		return fmt.Errorf("profile validation failed")
	}
	return nil
}
