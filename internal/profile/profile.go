// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package profile wraps runtime/pprof for the bench command.
package profile

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"go.uber.org/zap"
)

// Config names the profile files to write. Empty names are skipped.
type Config struct {
	// CPUProfile enables CPU profiling to the specified file
	CPUProfile string `mapstructure:"cpu"`
	// MemProfile writes a heap profile on Stop
	MemProfile string `mapstructure:"mem"`
	// BlockProfile enables block (contention) profiling
	BlockProfile string `mapstructure:"block"`
	// MutexProfile enables mutex profiling
	MutexProfile string `mapstructure:"mutex"`
}

// Enabled reports whether any profile is requested.
func (c Config) Enabled() bool {
	return c.CPUProfile != "" || c.MemProfile != "" || c.BlockProfile != "" || c.MutexProfile != ""
}

// Profiler wraps profiling functionality
type Profiler struct {
	config    Config
	log       *zap.Logger
	cpuFile   *os.File
	startTime time.Time
}

// New creates a new profiler with the given configuration
func New(config Config, log *zap.Logger) *Profiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Profiler{config: config, log: log}
}

// Start begins profiling
func (p *Profiler) Start() error {
	p.startTime = time.Now()

	if p.config.BlockProfile != "" {
		runtime.SetBlockProfileRate(1)
	}
	if p.config.MutexProfile != "" {
		runtime.SetMutexProfileFraction(1)
	}

	if p.config.CPUProfile != "" {
		f, err := os.Create(p.config.CPUProfile)
		if err != nil {
			return fmt.Errorf("create CPU profile: %w", err)
		}
		p.cpuFile = f
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			p.cpuFile = nil
			return fmt.Errorf("start CPU profile: %w", err)
		}
	}
	return nil
}

// Stop ends profiling and writes all profile files
func (p *Profiler) Stop() error {
	p.log.Debug("profiling stopped", zap.Duration("elapsed", time.Since(p.startTime)))

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			return fmt.Errorf("close CPU profile: %w", err)
		}
		p.cpuFile = nil
		p.log.Info("profile written", zap.String("kind", "cpu"), zap.String("path", p.config.CPUProfile))
	}

	if p.config.MemProfile != "" {
		runtime.GC() // up-to-date statistics
		if err := p.write("heap", p.config.MemProfile); err != nil {
			return err
		}
	}
	if p.config.BlockProfile != "" {
		err := p.write("block", p.config.BlockProfile)
		runtime.SetBlockProfileRate(0)
		if err != nil {
			return err
		}
	}
	if p.config.MutexProfile != "" {
		err := p.write("mutex", p.config.MutexProfile)
		runtime.SetMutexProfileFraction(0)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Profiler) write(kind, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s profile: %w", kind, err)
	}
	defer f.Close()
	if err := pprof.Lookup(kind).WriteTo(f, 0); err != nil {
		return fmt.Errorf("write %s profile: %w", kind, err)
	}
	p.log.Info("profile written", zap.String("kind", kind), zap.String("path", path))
	return nil
}

// MemStats returns current memory statistics as log fields.
func MemStats() []zap.Field {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return []zap.Field{
		zap.Uint64("alloc_mb", m.Alloc/1024/1024),
		zap.Uint64("total_alloc_mb", m.TotalAlloc/1024/1024),
		zap.Uint64("sys_mb", m.Sys/1024/1024),
		zap.Uint32("num_gc", m.NumGC),
		zap.Uint64("heap_objects", m.HeapObjects),
	}
}
