// Package constants defines simulation parameters, security parameters and
// artifact names for the adaptive log-security pipeline.
//
// Values here are fixed design constants. Anything an operator may tune lives
// in pkg/config and only defaults to the values below.
package constants

import "math"

// Identification
const (
	// ProjectName is used in log output and metric namespaces
	ProjectName = "quantum-adaptive-log-security"

	// MetricsNamespace prefixes every exported Prometheus metric
	MetricsNamespace = "qals"
)

// Search-advantage simulation defaults
const (
	// DefaultBaseShots is the shot budget for the ideal success estimate
	DefaultBaseShots = 2048

	// DefaultSingleQubitError is the depolarizing rate applied to h and x gates
	DefaultSingleQubitError = 0.002

	// DefaultTwoQubitError is the depolarizing rate applied to cx gates
	DefaultTwoQubitError = 0.01

	// DefaultMaxRecords caps the anomaly table rows that form the search space
	DefaultMaxRecords = 512

	// BaselineTarget is the fixed pattern index always included in a run
	BaselineTarget = 0

	// QuarterPi is the amplitude-amplification iteration factor
	QuarterPi = math.Pi / 4
)

// DefaultShotBudgets are the finite sample sizes used for the noisy model.
// Returned as a fresh slice so callers may modify it.
func DefaultShotBudgets() []int {
	return []int{256, 512, 1024, 2048}
}

// Channel simulation defaults (MDI-QKD)
const (
	// DefaultTotalBits is the number of exchanged bits per scenario
	DefaultTotalBits = 10000

	// DefaultSeed makes simulation runs reproducible unless overridden
	DefaultSeed uint64 = 42

	// QBERAbortThreshold is the error rate at which privacy amplification
	// leaves no secure key
	QBERAbortThreshold = 0.5
)

// DefaultNoiseLevels returns the channel noise grid axis.
func DefaultNoiseLevels() []float64 {
	return []float64{0.0, 0.02, 0.05, 0.1}
}

// DefaultAttackProbabilities returns the intercept-resend grid axis.
func DefaultAttackProbabilities() []float64 {
	return []float64{0.0, 0.1, 0.25, 0.5}
}

// Threat classification thresholds (inclusive lower bounds)
const (
	// HighThreatThreshold is the mean search success at or above which the
	// threat level is HIGH
	HighThreatThreshold = 0.8

	// MediumThreatThreshold is the mean search success at or above which the
	// threat level is at least MEDIUM
	MediumThreatThreshold = 0.4
)

// Symmetric encryption parameters (AES-256-GCM, 128-bit nonce)
const (
	// KeySize is the size of the derived AES-256 key in bytes
	KeySize = 32

	// NonceSize is the size of the GCM nonce carried in each package
	NonceSize = 16

	// TagSize is the size of the GCM authentication tag
	TagSize = 16

	// PackageHeaderSize is the fixed prefix before the ciphertext
	PackageHeaderSize = NonceSize + TagSize

	// MaxSealsPerKey bounds how many packages one AEAD instance may seal
	// before a new key is required
	MaxSealsPerKey = 1 << 20
)

// Artifact names
const (
	GroverResultsFile      = "grover_results.csv"
	GroverNoiseResultsFile = "grover_noise_results.csv"
	ChannelResultsFile     = "mdi_qkd_results.csv"
	ClassicalResultsFile   = "classical_results.csv"
	ComparisonFile         = "final_comparison.csv"

	// PackagePrefix is joined with the threat level to name the encrypted artifact
	PackagePrefix = "encrypted_anomalies_"

	// PackageSuffix is the encrypted artifact extension
	PackageSuffix = ".bin"
)

// Input table
const (
	// DefaultScoreColumn is the anomaly score column in the input table
	DefaultScoreColumn = "anomaly_score"

	// DetectionPercentile is the score percentile above which the classical
	// baseline counts a record as detected
	DetectionPercentile = 90.0
)
