package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/gobwas/avl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gobwas/placement"
	"github.com/gobwas/placement/internal/config"
	"github.com/gobwas/placement/internal/logging"
	"github.com/gobwas/placement/internal/metrics"
)

func main() {
	var (
		p        int    // Number of goroutines.
		n        int    // Number of resources.
		cfgPath  string // Optional scenario file.
		policies string // Comma-separated policies list.
		replicas string // Comma-separated ring replicas list.
		words    string // Optional words file.
		listen   string // Optional metrics address.
		csv      bool

		verbose bool
		silent  bool
	)
	flag.IntVar(&p,
		"parallelism", runtime.NumCPU(),
		"number of concurrent runs",
	)
	flag.IntVar(&n,
		"resources", -1,
		"number of resources to store (overrides config)",
	)
	flag.StringVar(&cfgPath,
		"config", "",
		"path to yaml scenario file",
	)
	flag.StringVar(&policies,
		"policies", "",
		"comma-separated list of policies: ring, modulus (overrides config)",
	)
	flag.StringVar(&replicas,
		"replicas", "",
		"comma-separated list of ring points per node (overrides config)",
	)
	flag.StringVar(&words,
		"words", "",
		"file with resource names, one per line (overrides config)",
	)
	flag.StringVar(&listen,
		"metrics", "",
		"serve prometheus metrics on this address after runs complete",
	)
	flag.BoolVar(&verbose,
		"v", false,
		"be verbose",
	)
	flag.BoolVar(&silent,
		"s", false,
		"be silent: do not print store dumps",
	)
	flag.BoolVar(&csv,
		"csv", false,
		"print migrations table as csv",
	)

	flag.Parse()

	cfg := config.Default()
	if cfgPath != "" {
		c, err := config.Load(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = *c
	}
	if policies != "" {
		cfg.Policies = splitList(policies)
	}
	if replicas != "" {
		cfg.Replicas = cfg.Replicas[:0]
		for _, s := range splitList(replicas) {
			r, err := strconv.Atoi(s)
			if err != nil {
				log.Fatalf("bad replicas value %q: %v", s, err)
			}
			cfg.Replicas = append(cfg.Replicas, r)
		}
	}
	if n >= 0 {
		cfg.Resources.Count = n
	}
	if words != "" {
		cfg.Resources.Words = words
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var handler slog.Handler
	if verbose {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	resources, err := loadResources(cfg.Resources)
	if err != nil {
		log.Fatal(err)
	}
	logf := func(f string, args ...interface{}) {
		if !verbose {
			return
		}
		log.Printf(f, args...)
	}
	logf("%d resources are ready", len(resources))

	var reg *prometheus.Registry
	if listen != "" {
		reg = prometheus.NewRegistry()
	}

	var (
		jobs []job
		seen = make(map[job]bool)
	)
	add := func(j job) {
		if seen[j] {
			logf("%s run duplicated; skip", j)
			return
		}
		seen[j] = true
		jobs = append(jobs, j)
	}
	for _, name := range cfg.Policies {
		switch name {
		case config.PolicyRing:
			for _, r := range cfg.Replicas {
				add(job{policy: name, replicas: r})
			}
		case config.PolicyModulus:
			add(job{policy: name})
		}
	}
	logf("%d runs are ready", len(jobs))

	var (
		work    = make(chan job)
		done    = make(chan struct{}, p)
		results = make(chan result, 1)
	)
	for i := 0; i < p; i++ {
		go func() {
			defer func() {
				done <- struct{}{}
			}()
			for j := range work {
				results <- run(j, &cfg, resources, !silent,
					placement.WithLogger(newLogger(handler, j)),
					placement.WithMetrics(newCollector(reg, j)),
				)
			}
		}()
	}
	go func() {
		for _, j := range jobs {
			work <- j
		}
		close(work)
		for i := 0; i < p; i++ {
			<-done
		}
		close(results)
	}()

	var t avl.Tree
	for r := range results {
		t, _ = t.Insert(r)
	}

	var failed bool
	t.InOrder(func(x avl.Item) bool {
		r := x.(result)
		if !silent {
			fmt.Printf("\n\n\t\t %s\n\n", strings.ToUpper(r.String()))
			os.Stdout.Write(r.dump)
		}
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", r, r.err)
			failed = true
		}
		return true
	})

	tw := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	printTable(tw, &t, csv)
	tw.Flush()

	if listen != "" {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		logf("serving metrics on %s", listen)
		log.Fatal(http.ListenAndServe(listen, nil))
	}
	if failed {
		os.Exit(1)
	}
}

type job struct {
	policy   string
	replicas int
}

func (j job) String() string {
	if j.policy == config.PolicyRing {
		return fmt.Sprintf("%s/%d", j.policy, j.replicas)
	}
	return j.policy
}

func (j job) compare(x job) int {
	if c := strings.Compare(j.policy, x.policy); c != 0 {
		return c
	}
	return j.replicas - x.replicas
}

type result struct {
	job

	steps    []string
	migrated []int
	total    int
	dump     []byte
	err      error
}

func (r result) Compare(x avl.Item) int {
	return r.job.compare(x.(result).job)
}

// newLogger returns a logger for the run j. Logging is disabled if h is nil.
func newLogger(h slog.Handler, j job) placement.Logger {
	if h == nil {
		return logging.NewNop()
	}
	return logging.NewSlog(slog.New(h).With("run", j.String()))
}

// newCollector returns a metrics collector for the run j. Every run gets its
// own series distinguished by the "run" label. Metrics are disabled if reg is
// nil.
func newCollector(reg *prometheus.Registry, j job) placement.MetricsCollector {
	if reg == nil {
		return metrics.NewNop()
	}
	return metrics.NewPrometheus(
		prometheus.WrapRegistererWith(prometheus.Labels{"run": j.String()}, reg),
		"",
	)
}

func newPolicy(j job, cfg *config.Config) placement.Policy {
	if j.policy == config.PolicyRing {
		return &placement.RingPolicy{Replicas: j.replicas}
	}
	return &placement.ModPolicy{Seed: cfg.Seed}
}

func run(j job, cfg *config.Config, resources []placement.Resource, dump bool, opts ...placement.Option) (ret result) {
	ret.job = j

	var buf bytes.Buffer
	defer func() {
		ret.dump = buf.Bytes()
	}()
	s := placement.New(newPolicy(j, cfg), opts...)
	dumpStore := func() {
		if !dump || ret.err != nil {
			return
		}
		ret.err = s.Dump(&buf)
	}
	step := func(name string, fn func() (int, error)) {
		if ret.err != nil {
			return
		}
		m, err := fn()
		if err != nil {
			ret.err = err
			return
		}
		ret.steps = append(ret.steps, name)
		ret.migrated = append(ret.migrated, m)
		ret.total += m
	}

	for _, name := range cfg.Nodes {
		name := name
		step("add "+name, func() (int, error) {
			return s.AddNode(name)
		})
	}
	dumpStore()
	for _, r := range resources {
		if ret.err != nil {
			break
		}
		ret.err = s.AddResource(r)
	}
	dumpStore()
	for _, st := range cfg.Steps {
		st := st
		step(st.String(), func() (int, error) {
			if st.Op == config.OpAdd {
				return s.AddNode(st.Node)
			}
			return s.RemoveNode(st.Node)
		})
		dumpStore()
	}
	if ret.err == nil {
		ret.err = s.Verify()
	}
	return ret
}

func printTable(w io.Writer, t *avl.Tree, csv bool) {
	sep := "\t"
	if csv {
		sep = ",\t"
	}
	var header []string
	t.InOrder(func(x avl.Item) bool {
		header = x.(result).steps
		return false
	})
	fmt.Fprintf(w, "run%s%s%stotal\n", sep, strings.Join(header, sep), sep)
	t.InOrder(func(x avl.Item) bool {
		r := x.(result)
		cols := make([]string, len(r.migrated))
		for i, m := range r.migrated {
			cols[i] = strconv.Itoa(m)
		}
		fmt.Fprintf(w, "%s%s%s%s%d\n", r, sep, strings.Join(cols, sep), sep, r.total)
		return true
	})
}

func loadResources(c config.ResourcesConfig) ([]placement.Resource, error) {
	if c.Words != "" {
		return readWords(c.Words, c.Count)
	}
	ret := make([]placement.Resource, 0, c.Count)
	seen := make(map[string]bool, c.Count)
	rnd := rand.New(rand.NewSource(1))
	for len(ret) < c.Count {
		s := fmt.Sprintf("%016x", rnd.Int63n(math.MaxInt64))
		if seen[s] {
			continue
		}
		seen[s] = true
		ret = append(ret, placement.Resource(s))
	}
	return ret, nil
}

func splitList(s string) (ret []string) {
	for _, x := range strings.Split(s, ",") {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		ret = append(ret, x)
	}
	return ret
}
