// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Databases names the reference databases consumed by the external
// predictors. All five are required positional inputs of the pipeline.
type Databases struct {
	// Uniref90 is the profile database searched during profile construction.
	Uniref90 string `json:"uniref90" yaml:"uniref90"`

	// Uniref100 is the alignment-depth database used by the fallback
	// iterative search when the primary alignment is shallow.
	Uniref100 string `json:"uniref100" yaml:"uniref100"`

	// HHBlitsSeq is the hhblits sequence database for the primary alignment.
	HHBlitsSeq string `json:"hhblits_seq" yaml:"hhblits_seq"`

	// HHBlitsTemplate is the structure-template database searched during
	// template masking.
	HHBlitsTemplate string `json:"hhblits_template" yaml:"hhblits_template"`
}

// ToolchainConfig names every external predictor binary and the fixed
// weight/data files they consume. Binaries are resolved through PATH unless
// given as absolute paths.
type ToolchainConfig struct {
	Blastpgp    string `json:"blastpgp" yaml:"blastpgp"`
	Makemat     string `json:"makemat" yaml:"makemat"`
	HHBlits     string `json:"hhblits" yaml:"hhblits"`
	HHSearch    string `json:"hhsearch" yaml:"hhsearch"`
	Jackhmmer   string `json:"jackhmmer" yaml:"jackhmmer"`
	EslSfetch   string `json:"esl_sfetch" yaml:"esl_sfetch"`
	FFIndex     string `json:"ffindex_build" yaml:"ffindex_build"`
	Psipred     string `json:"psipred" yaml:"psipred"`
	Psipass2    string `json:"psipass2" yaml:"psipass2"`
	Solvpred    string `json:"solvpred" yaml:"solvpred"`
	Alnstats    string `json:"alnstats" yaml:"alnstats"`
	Psicov      string `json:"psicov" yaml:"psicov"`
	Freecontact string `json:"freecontact" yaml:"freecontact"`
	CCMpred     string `json:"ccmpred" yaml:"ccmpred"`
	Stage1      string `json:"metapsicov" yaml:"metapsicov"`
	Stage2      string `json:"metapsicov_p2" yaml:"metapsicov_p2"`

	// DataDir holds the predictor weight files (psipred/solvpred weights,
	// the ten stage-1 distance-band models, the stage-2 model).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// ScoreTimeout bounds the wall-clock time of the two heaviest contact
	// scorers (psicov, ccmpred). A scorer hitting the ceiling contributes
	// an empty score source instead of failing the run.
	ScoreTimeout time.Duration `json:"score_timeout" yaml:"score_timeout"`
}

// DefaultToolchain returns a ToolchainConfig with conventional binary names
// and the 24-hour scorer ceiling.
func DefaultToolchain() ToolchainConfig {
	return ToolchainConfig{
		Blastpgp:     "blastpgp",
		Makemat:      "makemat",
		HHBlits:      "hhblits",
		HHSearch:     "hhsearch",
		Jackhmmer:    "jackhmmer",
		EslSfetch:    "esl-sfetch",
		FFIndex:      "ffindex_build",
		Psipred:      "psipred",
		Psipass2:     "psipass2",
		Solvpred:     "solvpred",
		Alnstats:     "alnstats",
		Psicov:       "psicov",
		Freecontact:  "freecontact",
		CCMpred:      "ccmpred",
		Stage1:       "metapsicov",
		Stage2:       "metapsicovp2",
		DataDir:      "data",
		ScoreTimeout: 24 * time.Hour,
	}
}

// PipelineConfig groups everything one controller invocation needs.
type PipelineConfig struct {
	Toolchain ToolchainConfig `json:"toolchain" yaml:"toolchain"`
	Databases Databases       `json:"databases" yaml:"databases"`

	// JobID prefixes every artifact of this run (default "query").
	JobID string `json:"job_id" yaml:"job_id"`

	// WorkDir is the reusable workspace directory. It must exist before
	// the controller starts.
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// Threads is passed through to tools that parallelize internally.
	// The controller itself is strictly sequential.
	Threads int `json:"threads" yaml:"threads"`

	// KeepTemp retains intermediate artifacts after a successful run.
	KeepTemp bool `json:"keep_temp" yaml:"keep_temp"`
}

const (
	// DefaultJobID is used when no job identifier is given.
	DefaultJobID = "query"

	// MinDomainLength is the smallest unmatched region treated as an
	// independent prediction unit.
	MinDomainLength = 30

	// MinAlignmentDepth gates the contact scorers: below this many
	// aligned sequences their output is synthesized empty.
	MinAlignmentDepth = 10

	// DeepAlignmentDepth is the primary-alignment depth above which the
	// fallback iterative search is skipped.
	DeepAlignmentDepth = 3000

	// MaxStage2Contacts caps the stage-2 fusion output, ranked by
	// probability descending.
	MaxStage2Contacts = 5000

	// TemplateIdentity is the minimum hit identity (percent) for a
	// template match to mask its aligned query range.
	TemplateIdentity = 98.0
)
