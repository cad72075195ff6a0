package grover

import (
	"context"
	"math/rand/v2"
	"slices"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	qerrors "github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/errors"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/parallel"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/metrics"
)

// SearchTrial is the ideal-device outcome for one target.
type SearchTrial struct {
	Target     int
	Bits       string
	Iterations int
	Success    float64
	Depth      int
}

// NoiseTrial is the noisy-device outcome for one target at one shot budget.
type NoiseTrial struct {
	Target  int
	Bits    string
	Shots   int
	Success float64
}

// Result holds the trials of one simulation run in canonical order: target
// ascending, and for noise trials shot budgets in configured order.
type Result struct {
	SearchSpace int
	Qubits      int
	Trials      []SearchTrial
	NoiseTrials []NoiseTrial
}

// Config controls a search simulation.
type Config struct {
	BaseShots   int
	ShotBudgets []int
	Noise       NoiseModel
	Seed        uint64
	Workers     int
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		BaseShots:   constants.DefaultBaseShots,
		ShotBudgets: constants.DefaultShotBudgets(),
		Noise: NoiseModel{
			SingleQubitError: constants.DefaultSingleQubitError,
			TwoQubitError:    constants.DefaultTwoQubitError,
		},
		Seed: constants.DefaultSeed,
	}
}

// Validate checks shot budgets and error rates.
func (c Config) Validate() error {
	if c.BaseShots <= 0 || len(c.ShotBudgets) == 0 {
		return qerrors.NewConfigurationError("grover.Config", qerrors.ErrInvalidParameter)
	}
	for _, s := range c.ShotBudgets {
		if s <= 0 {
			return qerrors.NewConfigurationError("grover.Config", qerrors.ErrInvalidParameter)
		}
	}
	return c.Noise.Validate()
}

// Simulator runs ideal and noisy search trials for a set of targets.
type Simulator struct {
	cfg       Config
	ideal     Backend
	noisy     Backend
	logger    *metrics.Logger
	collector *metrics.Collector
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithBackends replaces the ideal and noisy backends.
func WithBackends(ideal, noisy Backend) Option {
	return func(s *Simulator) {
		s.ideal = ideal
		s.noisy = noisy
	}
}

// WithLogger sets the logger.
func WithLogger(l *metrics.Logger) Option {
	return func(s *Simulator) {
		s.logger = l
	}
}

// WithCollector records trial metrics into c.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Simulator) {
		s.collector = c
	}
}

// NewSimulator creates a simulator. By default both backends are analytic,
// the noisy one using cfg.Noise.
func NewSimulator(cfg Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	noise := cfg.Noise
	s := &Simulator{
		cfg:    cfg,
		ideal:  &AnalyticBackend{},
		noisy:  &AnalyticBackend{Noise: &noise},
		logger: metrics.NullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run simulates every target within a search space of size n. Targets are
// deduplicated and processed in ascending order; each target draws from its
// own random streams derived from the configured seed, so results do not
// depend on scheduling.
func (s *Simulator) Run(ctx context.Context, n int, targets []int) (*Result, error) {
	if n <= 0 {
		return nil, qerrors.NewInputError("grover.Run", qerrors.ErrEmptySearchSpace)
	}
	if len(targets) == 0 {
		return nil, qerrors.NewInputError("grover.Run", qerrors.ErrEmptyInput)
	}

	ts := slices.Clone(targets)
	slices.Sort(ts)
	ts = slices.Compact(ts)

	circuits := make([]*Circuit, len(ts))
	for i, t := range ts {
		c, err := NewCircuit(n, t)
		if err != nil {
			return nil, err
		}
		circuits[i] = c
	}

	budgets := s.cfg.ShotBudgets
	res := &Result{
		SearchSpace: n,
		Qubits:      Width(n),
		Trials:      make([]SearchTrial, len(ts)),
		NoiseTrials: make([]NoiseTrial, len(ts)*len(budgets)),
	}

	s.logger.Info("search started", metrics.Fields{
		"search_space": n,
		"qubits":       res.Qubits,
		"iterations":   Iterations(n),
		"targets":      len(ts),
	})

	err := parallel.For(ctx, len(ts), s.cfg.Workers, func(ctx context.Context, i int) error {
		c := circuits[i]

		trial, err := s.idealTrial(ctx, c, s.stream(i, 0))
		if err != nil {
			return err
		}
		res.Trials[i] = trial

		for j, shots := range budgets {
			nt, err := s.noiseTrial(ctx, c, shots, s.stream(i, j+1))
			if err != nil {
				return err
			}
			res.NoiseTrials[i*len(budgets)+j] = nt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, t := range res.Trials {
		s.logger.Debug("target searched", metrics.Fields{
			"target":  t.Bits,
			"success": t.Success,
			"depth":   t.Depth,
		})
	}
	return res, nil
}

// stream returns the random source for sub-task j of target slot i.
func (s *Simulator) stream(i, j int) rand.Source {
	return rand.NewPCG(s.cfg.Seed, uint64(i)<<16|uint64(j))
}

func (s *Simulator) idealTrial(ctx context.Context, c *Circuit, src rand.Source) (SearchTrial, error) {
	counts, err := s.ideal.Execute(ctx, c, s.cfg.BaseShots, src)
	if err != nil {
		return SearchTrial{}, err
	}
	success := float64(counts[c.Bits]) / float64(s.cfg.BaseShots)
	if s.collector != nil {
		s.collector.RecordSearchTrial(success)
	}
	return SearchTrial{
		Target:     c.Target,
		Bits:       c.Bits,
		Iterations: c.Iterations,
		Success:    success,
		Depth:      c.Cost.Depth,
	}, nil
}

func (s *Simulator) noiseTrial(ctx context.Context, c *Circuit, shots int, src rand.Source) (NoiseTrial, error) {
	counts, err := s.noisy.Execute(ctx, c, shots, src)
	if err != nil {
		return NoiseTrial{}, err
	}
	if s.collector != nil {
		s.collector.RecordNoiseTrial()
	}
	return NoiseTrial{
		Target:  c.Target,
		Bits:    c.Bits,
		Shots:   shots,
		Success: float64(counts[c.Bits]) / float64(shots),
	}, nil
}

// MeanSuccess returns the mean ideal success of the trials.
func (r *Result) MeanSuccess() float64 {
	if len(r.Trials) == 0 {
		return 0
	}
	var sum float64
	for _, t := range r.Trials {
		sum += t.Success
	}
	return sum / float64(len(r.Trials))
}

// MaxDepth returns the deepest circuit among the trials.
func (r *Result) MaxDepth() int {
	d := 0
	for _, t := range r.Trials {
		d = max(d, t.Depth)
	}
	return d
}
