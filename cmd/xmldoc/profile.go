package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
)

// profiler records a CPU profile over the document operations of one run and a
// heap profile once they finish. CPU samples carry an "xmldoc.op" label naming
// the operation (load, validate, query, sleep). Empty paths disable a profile.
type profiler struct {
	cpuPath string
	memPath string
	cpu     *os.File
}

func (p *profiler) start() error {
	if p.cpuPath == "" {
		return nil
	}
	f, err := os.Create(p.cpuPath)
	if err != nil {
		return fmt.Errorf("create cpu profile %s: %w", p.cpuPath, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		return errors.Join(fmt.Errorf("start cpu profile %s: %w", p.cpuPath, err), f.Close())
	}
	p.cpu = f
	return nil
}

// do runs fn with the operation label attached to its goroutine.
func (p *profiler) do(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	pprof.Do(ctx, pprof.Labels("xmldoc.op", op), func(ctx context.Context) {
		err = fn(ctx)
	})
	return err
}

func (p *profiler) stop() error {
	var errs []error
	if p.cpu != nil {
		pprof.StopCPUProfile()
		if err := p.cpu.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cpu profile %s: %w", p.cpuPath, err))
		}
		p.cpu = nil
	}
	if p.memPath != "" {
		errs = append(errs, writeHeapProfile(p.memPath))
	}
	return errors.Join(errs...)
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mem profile %s: %w", path, err)
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Join(fmt.Errorf("write mem profile %s: %w", path, err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close mem profile %s: %w", path, err)
	}
	return nil
}
