package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/internal/constants"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/config"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/metrics"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/pipeline"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/policy"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/report"
	"github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/store"
)

// commonFlags are accepted by every stage command. Values override the
// config file only when given on the command line.
type commonFlags struct {
	configPath  string
	seed        uint64
	workers     int
	logLevel    string
	logFormat   string
	outputDir   string
	metricsPath string
	trace       bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "YAML config file (defaults apply when empty)")
	fs.Uint64Var(&c.seed, "seed", 0, "Seed for every simulated random stream")
	fs.IntVar(&c.workers, "workers", 0, "Worker goroutines (0 = GOMAXPROCS)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&c.logFormat, "log-format", "", "Log format: text or json")
	fs.StringVarP(&c.outputDir, "output", "o", "", "Directory for result tables")
	fs.StringVar(&c.metricsPath, "metrics", "", "Write a Prometheus metrics dump to this file")
	fs.BoolVar(&c.trace, "trace", false, "Print a stage timeline to stderr")
}

func (c *commonFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	if fs.Changed("seed") {
		cfg.Seed = c.seed
	}
	if fs.Changed("workers") {
		cfg.Workers = c.workers
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Logging.Format = c.logFormat
	}
	if fs.Changed("output") {
		cfg.Output.Dir = c.outputDir
	}
	if fs.Changed("metrics") {
		cfg.Metrics.Path = c.metricsPath
	}
}

type datasetFlags struct {
	path          string
	scoreColumn   string
	maxRecords    int
	requireScores bool
}

func (d *datasetFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&d.path, "dataset", "d", "", "Anomaly table (CSV)")
	fs.StringVar(&d.scoreColumn, "score-column", "", "Anomaly score column name")
	fs.IntVar(&d.maxRecords, "max-records", 0, "Only use the first N records (0 = all)")
	fs.BoolVar(&d.requireScores, "require-scores", false, "Fail when the score column is missing")
}

func (d *datasetFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	if fs.Changed("dataset") {
		cfg.Dataset.Path = d.path
	}
	if fs.Changed("score-column") {
		cfg.Dataset.ScoreColumn = d.scoreColumn
	}
	if fs.Changed("max-records") {
		cfg.Dataset.MaxRecords = d.maxRecords
	}
	if fs.Changed("require-scores") {
		cfg.Dataset.RequireScores = d.requireScores
	}
}

type searchFlags struct {
	baseShots int
	shots     []int
}

func (s *searchFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&s.baseShots, "base-shots", 0, "Shots per ideal search trial")
	fs.IntSliceVar(&s.shots, "shots", nil, "Shot budgets for the noisy trials")
}

func (s *searchFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	if fs.Changed("base-shots") {
		cfg.Search.BaseShots = s.baseShots
	}
	if fs.Changed("shots") {
		cfg.Search.ShotBudgets = s.shots
	}
}

type channelFlags struct {
	bits   int
	noise  []float64
	attack []float64
}

func (c *channelFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&c.bits, "bits", 0, "Raw bits exchanged per scenario")
	fs.Float64SliceVar(&c.noise, "noise", nil, "Channel noise levels")
	fs.Float64SliceVar(&c.attack, "attack", nil, "Intercept-resend probabilities")
}

func (c *channelFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	if fs.Changed("bits") {
		cfg.Channel.TotalBits = c.bits
	}
	if fs.Changed("noise") {
		cfg.Channel.NoiseLevels = c.noise
	}
	if fs.Changed("attack") {
		cfg.Channel.AttackProbabilities = c.attack
	}
}

type storageFlags struct {
	backend    string
	dir        string
	redisAddr  string
	provenance string
	keyOut     string
}

func (s *storageFlags) register(fs *flag.FlagSet, withKeys bool) {
	fs.StringVar(&s.backend, "storage", "", "Package storage: file, redis or memory")
	fs.StringVar(&s.dir, "storage-dir", "", "Directory for the file backend")
	fs.StringVar(&s.redisAddr, "redis-addr", "", "Redis address for the redis backend")
	if withKeys {
		fs.StringVar(&s.provenance, "provenance", "", "Key bits: fresh or channel")
		fs.StringVar(&s.keyOut, "key-out", "", "Export the derived key (hex) to this file")
	}
}

func (s *storageFlags) apply(fs *flag.FlagSet, cfg *config.Config) {
	if fs.Changed("storage") {
		cfg.Storage.Backend = s.backend
	}
	if fs.Changed("storage-dir") {
		cfg.Storage.Dir = s.dir
	}
	if fs.Changed("redis-addr") {
		cfg.Storage.Redis.Addr = s.redisAddr
	}
	if fs.Changed("provenance") {
		cfg.Keys.Provenance = s.provenance
	}
	if fs.Changed("key-out") {
		cfg.Keys.ExportPath = s.keyOut
	}
}

func newFlagSet(name, usage string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: qals %s [options]\n\n%s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// session is an open pipeline plus what the command needs to flush on exit.
type session struct {
	*pipeline.Pipeline
	tracer *metrics.SimpleTracer
	stderr io.Writer
}

// openSession opens the pipeline. Stages that never seal or load packages
// pass sealing=false and get a memory sink instead of the configured one.
func openSession(ctx context.Context, common *commonFlags, cfg *config.Config, stderr io.Writer, sealing bool) (*session, error) {
	s := &session{stderr: stderr}
	opts := []pipeline.Option{pipeline.WithLogger(cfg.Logger(stderr))}
	if !sealing {
		opts = append(opts, pipeline.WithSink(store.NewMemorySink()))
	}
	if common.trace {
		s.tracer = metrics.NewSimpleTracer()
		opts = append(opts, pipeline.WithTracer(s.tracer))
	}
	p, err := pipeline.Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	s.Pipeline = p
	return s, nil
}

// finish writes the metrics dump and the timeline, then closes the pipeline.
func (s *session) finish(err error) error {
	if s.tracer != nil {
		printTimeline(s.stderr, s.tracer.Spans())
	}
	if mErr := s.WriteMetrics(); mErr != nil && err == nil {
		err = mErr
	}
	if cErr := s.Close(); cErr != nil && err == nil {
		err = cErr
	}
	return err
}

func printTimeline(w io.Writer, spans []metrics.RecordedSpan) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SPAN\tDURATION\tSTATUS")
	for _, sp := range spans {
		status := "ok"
		if sp.Error != nil {
			status = sp.Error.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", sp.Name, sp.Duration, status)
	}
	tw.Flush()
}

func loadConfig(fs *flag.FlagSet, common *commonFlags, appliers ...func(*flag.FlagSet, *config.Config)) (*config.Config, error) {
	cfg, err := config.LoadConfig(common.configPath)
	if err != nil {
		return nil, err
	}
	common.apply(fs, cfg)
	for _, apply := range appliers {
		apply(fs, cfg)
	}
	return cfg, nil
}

// --- search ---

func searchCommand(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("search", "Simulate amplitude-amplification search over the anomaly table\nand run the classical linear-scan baseline.", stderr)
	var common commonFlags
	var data datasetFlags
	var search searchFlags
	common.register(fs)
	data.register(fs)
	search.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, &common, data.apply, search.apply)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, &common, cfg, stderr, false)
	if err != nil {
		return err
	}
	defer func() { err = s.finish(err) }()

	table, err := s.LoadDataset()
	if err != nil {
		return err
	}
	res, err := s.Search(ctx, table)
	if err != nil {
		return err
	}
	cls, err := s.Baseline(ctx, table)
	if err != nil {
		return err
	}
	files, err := s.WriteSearchTables(res)
	if err != nil {
		return err
	}
	more, err := s.WriteClassicalTables(cls, table)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Search space: %d records, %d qubits\n", res.SearchSpace, res.Qubits)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tBITS\tITERATIONS\tSUCCESS\tDEPTH")
	for _, t := range res.Trials {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.4f\t%d\n", t.Target, t.Bits, t.Iterations, t.Success, t.Depth)
	}
	tw.Flush()
	fmt.Fprintf(stdout, "Classical: max index %d, %d detected (rate %.4f) in %s\n",
		cls.MaxIndex, cls.Detected, cls.DetectionRate, cls.Elapsed)
	printFiles(stdout, append(files, more...))
	return nil
}

// --- channel ---

func channelCommand(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("channel", "Simulate the MDI-QKD exchange over every (noise, attack) pair.", stderr)
	var common commonFlags
	var ch channelFlags
	common.register(fs)
	ch.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, &common, ch.apply)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, &common, cfg, stderr, false)
	if err != nil {
		return err
	}
	defer func() { err = s.finish(err) }()

	scenarios, err := s.Channel(ctx)
	if err != nil {
		return err
	}
	file, err := s.WriteChannelTable(scenarios)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NOISE\tATTACK\tSIFTED\tQBER\tKEY RATE\tSECURE BITS")
	for _, sc := range scenarios {
		fmt.Fprintf(tw, "%g\t%g\t%d\t%.4f\t%.4f\t%d\n",
			sc.NoiseLevel, sc.AttackProbability, sc.SiftedLength, sc.QBER, sc.KeyRate, sc.SecureKeyLength)
	}
	tw.Flush()
	printFiles(stdout, []string{file})
	return nil
}

// --- secure ---

func secureCommand(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("secure", "Assess the threat from the search results, select a channel scenario,\nderive a key, encrypt the dataset and verify the stored package.\nReads "+constants.GroverResultsFile+" and "+constants.ChannelResultsFile+" from the output directory.", stderr)
	var common commonFlags
	var data datasetFlags
	var st storageFlags
	common.register(fs)
	data.register(fs)
	st.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, &common, data.apply, st.apply)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, &common, cfg, stderr, true)
	if err != nil {
		return err
	}
	defer func() { err = s.finish(err) }()

	trials, err := report.ReadFile(s.OutputPath(constants.GroverResultsFile), report.ReadSearchTrials)
	if err != nil {
		return err
	}
	scenarios, err := report.ReadFile(s.OutputPath(constants.ChannelResultsFile), report.ReadScenarios)
	if err != nil {
		return err
	}
	table, err := s.LoadDataset()
	if err != nil {
		return err
	}

	out, err := s.Secure(ctx, trials, scenarios, table.Payload)
	if err != nil {
		return err
	}
	printOutcome(stdout, out)
	return nil
}

func printOutcome(w io.Writer, out *pipeline.Outcome) {
	fmt.Fprintf(w, "Threat level: %s (mean success %.4f over %d trials)\n",
		out.Assessment.Level, out.Assessment.MeanSuccess, out.Assessment.Trials)
	fmt.Fprintf(w, "Scenario: noise %g, attack %g, qber %.4f, %d secure bits (%s key)\n",
		out.Scenario.NoiseLevel, out.Scenario.AttackProbability, out.Scenario.QBER, out.KeyBits, out.Provenance)
	fmt.Fprintf(w, "Package: %s (%d bytes), verified\n", out.PackageName, out.PackageSize)
	if out.KeyPath != "" {
		fmt.Fprintf(w, "Key exported to %s\n", out.KeyPath)
	}
}

// --- compare ---

func compareCommand(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("compare", "Build the classical/quantum comparison table from "+constants.ClassicalResultsFile+"\nand "+constants.GroverResultsFile+" in the output directory.", stderr)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, &common)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, &common, cfg, stderr, false)
	if err != nil {
		return err
	}
	defer func() { err = s.finish(err) }()

	classical, err := report.ReadFile(s.OutputPath(constants.ClassicalResultsFile), report.ReadClassical)
	if err != nil {
		return err
	}
	trials, err := report.ReadFile(s.OutputPath(constants.GroverResultsFile), report.ReadSearchTrials)
	if err != nil {
		return err
	}
	rows, err := report.Compare(classical, trials)
	if err != nil {
		return err
	}
	file, err := s.WriteComparison(rows)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tCLASSICAL\tQUANTUM")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Metric, r.Classical, r.Quantum)
	}
	tw.Flush()
	printFiles(stdout, []string{file})
	return nil
}

// --- decrypt ---

func decryptCommand(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("decrypt", "Verify and decrypt the stored package for a threat level.", stderr)
	var common commonFlags
	var st storageFlags
	var keyPath, levelName, outPath string
	common.register(fs)
	st.register(fs, false)
	fs.StringVarP(&keyPath, "key", "k", "", "Hex key file written by --key-out (required)")
	fs.StringVarP(&levelName, "level", "l", "", "Threat level of the package: LOW, MEDIUM or HIGH (required)")
	fs.StringVar(&outPath, "out", "", "Write the plaintext here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if keyPath == "" || levelName == "" {
		fs.Usage()
		return fmt.Errorf("--key and --level are required")
	}

	level, err := policy.ParseLevel(levelName)
	if err != nil {
		return err
	}
	key, err := pipeline.ReadKeyFile(keyPath)
	if err != nil {
		return err
	}
	defer clear(key[:])

	cfg, err := loadConfig(fs, &common, st.apply)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, &common, cfg, stderr, true)
	if err != nil {
		return err
	}
	defer func() { err = s.finish(err) }()

	plain, err := s.Decrypt(ctx, level, key)
	if err != nil {
		return err
	}
	if outPath == "" {
		_, err = stdout.Write(plain)
		return err
	}
	if err := os.WriteFile(outPath, plain, 0o600); err != nil {
		return fmt.Errorf("write plaintext: %w", err)
	}
	fmt.Fprintf(stdout, "Decrypted %d bytes to %s\n", len(plain), outPath)
	return nil
}

// --- run ---

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("run", "Run search, baseline, channel, secure and compare in one process.", stderr)
	var common commonFlags
	var data datasetFlags
	var search searchFlags
	var ch channelFlags
	var st storageFlags
	common.register(fs)
	data.register(fs)
	search.register(fs)
	ch.register(fs)
	st.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, &common, data.apply, search.apply, ch.apply, st.apply)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, &common, cfg, stderr, true)
	if err != nil {
		return err
	}
	defer func() { err = s.finish(err) }()

	rep, err := s.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Run %s finished in %s\n", rep.RunID, rep.Elapsed)
	printOutcome(stdout, rep.Secure)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tCLASSICAL\tQUANTUM")
	for _, r := range rep.Comparison {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Metric, r.Classical, r.Quantum)
	}
	tw.Flush()
	printFiles(stdout, rep.Files)
	return nil
}

func printFiles(w io.Writer, files []string) {
	for _, f := range files {
		fmt.Fprintf(w, "Wrote %s\n", f)
	}
}
