// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the contact-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meshbio/contact-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the contact-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "contact-engine",
	Short: "Residue-residue contact prediction pipeline",
	Long: `contact-engine predicts residue-residue contacts for a protein sequence
by orchestrating external predictors (alignment search, secondary structure,
solvent accessibility, and three contact scorers) behind a two-stage fusion
model. Template-matched regions are masked out and unmatched domains are
predicted independently, then merged into one global contact map.

The predict subcommand runs the whole pipeline; align and mask expose
individual stages against the same workspace, and ledger inspects a job's
recorded tool invocations.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./contact-engine.yaml or ~/.config/contact-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("contact-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "contact-engine"))
		}
	}

	viper.SetEnvPrefix("CONTACT_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// toolchainConfig merges the config file over the conventional defaults.
func toolchainConfig() types.ToolchainConfig {
	tc := types.DefaultToolchain()
	set := func(key string, dst *string) {
		if v := viper.GetString("toolchain." + key); v != "" {
			*dst = v
		}
	}
	set("blastpgp", &tc.Blastpgp)
	set("makemat", &tc.Makemat)
	set("hhblits", &tc.HHBlits)
	set("hhsearch", &tc.HHSearch)
	set("jackhmmer", &tc.Jackhmmer)
	set("esl_sfetch", &tc.EslSfetch)
	set("ffindex_build", &tc.FFIndex)
	set("psipred", &tc.Psipred)
	set("psipass2", &tc.Psipass2)
	set("solvpred", &tc.Solvpred)
	set("alnstats", &tc.Alnstats)
	set("psicov", &tc.Psicov)
	set("freecontact", &tc.Freecontact)
	set("ccmpred", &tc.CCMpred)
	set("metapsicov", &tc.Stage1)
	set("metapsicov_p2", &tc.Stage2)
	set("data_dir", &tc.DataDir)
	if d := viper.GetDuration("toolchain.score_timeout"); d > 0 {
		tc.ScoreTimeout = d
	}
	return tc
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
