package main

/*
	mediocredis-bench fires concurrent SET/GET/RPUSH/BLPOP traffic at a
	running mediocredis instance using a radix/v3 connection pool, and
	reports latency percentiles per command once the configured duration
	elapses.
*/

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mediocregopher/mediocredis/m"
	"github.com/mediocregopher/mediocredis/mcfg"
	"github.com/mediocregopher/mediocredis/mcmp"
	"github.com/mediocregopher/mediocredis/mctx"
	"github.com/mediocregopher/mediocredis/merr"
	"github.com/mediocregopher/mediocredis/mlog"
	"github.com/mediocregopher/mediocredis/mrun"
	"github.com/mediocregopher/mediocredis/mtime"
	"github.com/mediocregopher/radix/v3"
)

type sample struct {
	cmd string
	dur time.Duration
}

func main() {
	cmp := m.RootServiceComponent()

	addr := mcfg.String(cmp, "addr",
		mcfg.ParamDefault("127.0.0.1:6379"),
		mcfg.ParamUsage("Address of the mediocredis instance to benchmark."))
	concurrency := mcfg.Int(cmp, "concurrency",
		mcfg.ParamDefault(16),
		mcfg.ParamUsage("Number of concurrent worker goroutines issuing commands."))
	duration := mcfg.Duration(cmp, "duration",
		mcfg.ParamDefault(mtime.Duration{Duration: 5 * time.Second}),
		mcfg.ParamUsage("How long to run the benchmark for."))

	var pool *radix.Pool
	mrun.InitHook(cmp, func(context.Context) error {
		var err error
		pool, err = radix.NewPool("tcp", *addr, *concurrency)
		if err != nil {
			return merr.Wrap(err, cmp.Context(), mctx.Annotated("addr", *addr))
		}
		return nil
	})
	mrun.ShutdownHook(cmp, func(context.Context) error {
		if pool == nil {
			return nil
		}
		return pool.Close()
	})

	m.MustInit(cmp)
	mlog.From(cmp).Info("starting benchmark", mctx.Annotated(
		"addr", *addr, "concurrency", *concurrency, "duration", duration.Duration.String(),
	))

	samplesCh := make(chan sample, 4096)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go worker(pool, i, stop, samplesCh, &wg)
	}

	time.AfterFunc(duration.Duration, func() { close(stop) })
	wg.Wait()
	close(samplesCh)

	report(cmp, samplesCh)
	m.MustShutdown(cmp)
}

func worker(pool *radix.Pool, id int, stop <-chan struct{}, out chan<- sample, wg *sync.WaitGroup) {
	defer wg.Done()
	rng := rand.New(rand.NewSource(int64(id) + 1))
	key := fmt.Sprintf("bench:%d", id)
	listKey := fmt.Sprintf("bench:list:%d", id)

	for {
		select {
		case <-stop:
			return
		default:
		}

		switch rng.Intn(4) {
		case 0:
			timeCmd(out, "SET", func() error {
				return pool.Do(radix.Cmd(nil, "SET", key, fmt.Sprintf("%d", rng.Int())))
			})
		case 1:
			timeCmd(out, "GET", func() error {
				var v string
				return pool.Do(radix.Cmd(&v, "GET", key))
			})
		case 2:
			timeCmd(out, "RPUSH", func() error {
				return pool.Do(radix.Cmd(nil, "RPUSH", listKey, fmt.Sprintf("%d", rng.Int())))
			})
		case 3:
			timeCmd(out, "BLPOP", func() error {
				var v []string
				return pool.Do(radix.Cmd(&v, "BLPOP", listKey, "1"))
			})
		}
	}
}

func timeCmd(out chan<- sample, name string, fn func() error) {
	start := time.Now()
	if err := fn(); err != nil {
		return
	}
	select {
	case out <- sample{cmd: name, dur: time.Since(start)}:
	default:
	}
}

// report groups samples by command, sorts each group's durations, and logs
// p50/p99/max for each.
func report(cmp *mcmp.Component, samplesCh <-chan sample) {
	byCmd := map[string][]time.Duration{}
	for s := range samplesCh {
		byCmd[s.cmd] = append(byCmd[s.cmd], s.dur)
	}

	for cmd, durs := range byCmd {
		sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })
		p50 := durs[len(durs)*50/100]
		p99 := durs[min(len(durs)*99/100, len(durs)-1)]
		max := durs[len(durs)-1]

		mlog.From(cmp).Info("latency report", mctx.Annotated(
			"cmd", cmd,
			"count", len(durs),
			"p50", p50.String(),
			"p99", p99.String(),
			"max", max.String(),
		))
	}
}
