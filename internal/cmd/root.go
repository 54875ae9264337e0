package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jarredhawkins/textcatcher/internal/catcher"
	"github.com/jarredhawkins/textcatcher/internal/config"
	"github.com/jarredhawkins/textcatcher/internal/logging"
	"github.com/jarredhawkins/textcatcher/internal/metrics"
	"github.com/jarredhawkins/textcatcher/internal/stream"
)

// filterFlags describes the catcher built from the command line
type filterFlags struct {
	start   string
	end     string
	text    string
	line    string
	table   bool
	summary bool

	listen  bool
	muffle  bool
	print   bool
	expects int
	count   int

	muffleRest bool
	follow     bool
	debug      bool
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree around a fresh viper instance
func NewRootCmd() *cobra.Command {
	v := viper.New()
	f := &filterFlags{}

	root := &cobra.Command{
		Use:   "textcatcher [files...]",
		Short: "Catch, rewrite or suppress multi-line blocks in a text stream",
		Long: `textcatcher reads lines from stdin or files and passes them through a
queue of catchers. Each catcher recognises blocks of consecutive lines by a
start and an end condition, and may rewrite, print or suppress them.

Catchers come from the config file and from the flags below.`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd, args, v, f)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/textcatcher/textcatcher.yaml)")
	root.PersistentFlags().String("log", "", "log file path (defaults to stderr)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("metrics-addr", "", "serve prometheus metrics on this address")
	root.PersistentFlags().BoolVar(&f.debug, "debug", false, "enable debug logging")
	_ = v.BindPFlag("log.file", root.PersistentFlags().Lookup("log"))
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("metrics.addr", root.PersistentFlags().Lookup("metrics-addr"))

	addFilterFlags(root.Flags(), f)
	root.MarkFlagsMutuallyExclusive("start", "text", "line", "table")

	root.AddCommand(newServeCmd(v, f))
	root.AddCommand(newVersionCmd())

	return root
}

func addFilterFlags(fs *pflag.FlagSet, f *filterFlags) {
	fs.StringVarP(&f.start, "start", "s", "", "regex that opens a block")
	fs.StringVarP(&f.end, "end", "e", "", "regex that closes a block (default: same as --start)")
	fs.StringVar(&f.text, "text", "", "catch single lines containing this text")
	fs.StringVar(&f.line, "line", "", "catch single lines equal to this text")
	fs.BoolVar(&f.table, "table", false, "catch CREATE TABLE blocks")
	fs.BoolVar(&f.summary, "summary", false, "replace each table block with a one-line summary")

	fs.BoolVar(&f.listen, "listen", false, "observe blocks without changing the stream")
	fs.BoolVar(&f.muffle, "muffle", false, "suppress blocks")
	fs.BoolVarP(&f.print, "print", "p", false, "print every block as it closes, whatever the stream policy")
	fs.IntVar(&f.expects, "expects", 0, "close a block after this many lines")
	fs.IntVar(&f.count, "count", 0, "stop catching after this many blocks")

	fs.BoolVar(&f.muffleRest, "muffle-rest", false, "suppress every line no catcher consumed or rewrote")
	fs.BoolVarP(&f.follow, "follow", "f", false, "follow a single growing file")
}

func initConfig(v *viper.Viper, cmd *cobra.Command) error {
	config.SetDefaults(v)

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(config.ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(config.ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TEXTCATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// catchers returns the command-line catchers, in queue order
func (f *filterFlags) catchers(fs *pflag.FlagSet) ([]config.CatcherConfig, error) {
	if f.end != "" && f.start == "" {
		return nil, errors.New("--end needs --start")
	}

	base := config.CatcherConfig{
		Name:    "cli",
		Listen:  f.listen,
		Muffle:  f.muffle,
		Print:   f.print,
		Expects: f.expects,
		Count:   f.count,
	}

	var ccs []config.CatcherConfig
	switch {
	case f.start != "":
		base.Type = config.TypeRegex
		base.Start = f.start
		base.End = f.end
		ccs = append(ccs, base)
	case fs.Changed("text"):
		base.Type = config.TypeText
		base.Start = f.text
		ccs = append(ccs, base)
	case fs.Changed("line"):
		base.Type = config.TypeLine
		base.Start = f.line
		ccs = append(ccs, base)
	case f.table:
		base.Type = config.TypeTable
		base.Summary = f.summary
		ccs = append(ccs, base)
	}

	if f.muffleRest {
		last := math.MaxInt
		ccs = append(ccs, config.CatcherConfig{
			Name:     "rest",
			Type:     config.TypeText,
			Muffle:   true,
			Priority: &last,
		})
	}
	return ccs, nil
}

// setup loads config and logging, shared by every command that runs a queue
func setup(cmd *cobra.Command, v *viper.Viper, f *filterFlags) (*config.Config, io.Closer, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}

	closer, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Debug:  f.debug,
	})
	if err != nil {
		return nil, nil, err
	}

	ccs, err := f.catchers(cmd.Flags())
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	cfg.Catchers = append(cfg.Catchers, ccs...)
	if errs := cfg.Validate(); len(errs) > 0 {
		closer.Close()
		return nil, nil, config.ValidationErrors(errs)
	}
	return cfg, closer, nil
}

// startMetrics serves the collector in the background when an address is set
func startMetrics(ctx context.Context, cfg *config.Config, c *metrics.Collector) {
	if cfg.Metrics.Addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Addr, c); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()
}

func runFilter(cmd *cobra.Command, args []string, v *viper.Viper, f *filterFlags) error {
	if f.follow && len(args) != 1 {
		return errors.New("--follow needs exactly one file")
	}

	cfg, closer, err := setup(cmd, v, f)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector()
	startMetrics(ctx, cfg, collector)

	q := catcher.NewQueue()
	d := stream.New(q, cmd.OutOrStdout(), stream.WithMetrics(collector))
	if err := cfg.Populate(q, config.BuildOptions{
		Emit:    d.Emit,
		OnBlock: collector.ObserveBlock,
	}); err != nil {
		return err
	}
	log.WithFields(log.Fields{"catchers": q.Len()}).Debug("queue built")

	if f.follow {
		return d.Follow(ctx, args[0], cfg.Follow.DebounceInterval())
	}

	if len(args) == 0 {
		return d.Run(ctx, cmd.InOrStdin())
	}

	readers := make([]io.Reader, 0, len(args))
	for _, path := range args {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		readers = append(readers, file)
	}
	return d.Run(ctx, io.MultiReader(readers...))
}
