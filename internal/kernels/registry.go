// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/dgemm/internal/cpu"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrUnknownVariant is returned by Resolve for names that were never registered.
var ErrUnknownVariant = errors.New("unknown kernel variant")

var (
	muRegistry sync.Mutex
	registry   = make(map[string]*Variant)

	// warnedFallback keeps the names of variants for which a fallback warning was already logged.
	warnedFallback = make(map[string]bool)

	defaultOnce    sync.Once
	defaultVariant *Variant
)

// Register a kernel variant. It panics on invalid or duplicate registrations, since those are bugs.
//
// It is meant to be called from init() functions.
func Register(v Variant) {
	if v.Name == "" || v.Kernel == nil {
		exceptions.Panicf("kernels.Register: variant requires a name and a kernel, got %+v", v)
	}
	if err := v.Params.Validate(); err != nil {
		exceptions.Panicf("kernels.Register(%q): %v", v.Name, err)
	}
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if _, found := registry[v.Name]; found {
		exceptions.Panicf("kernels.Register(%q): variant registered twice", v.Name)
	}
	registry[v.Name] = &v
}

// Lookup returns the variant registered under name.
func Lookup(name string) (*Variant, bool) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	v, found := registry[name]
	return v, found
}

// Variants returns all registered variants, in order of preference: priority (descending), then name.
func Variants() []*Variant {
	muRegistry.Lock()
	variants := make([]*Variant, 0, len(registry))
	for _, v := range registry {
		variants = append(variants, v)
	}
	muRegistry.Unlock()
	slices.SortFunc(variants, func(a, b *Variant) int {
		if a.Priority != b.Priority {
			return int(b.Priority - a.Priority)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return variants
}

// Available returns the variants usable with the given features, in order of preference.
// Force-only variants are included.
func Available(features cpu.Features) []*Variant {
	var usable []*Variant
	for _, v := range Variants() {
		if features.Supports(v.Requires) {
			usable = append(usable, v)
		}
	}
	return usable
}

// Best returns the preferred auto-selectable variant for the given features:
// widest supported vector level first, scalar last.
func Best(features cpu.Features) *Variant {
	for _, v := range Variants() {
		if v.Priority != PriorityForceOnly && features.Supports(v.Requires) {
			return v
		}
	}
	exceptions.Panicf("kernels.Best: no scalar kernel registered!?")
	return nil
}

// Resolve returns the variant registered under name, or its fallback if the features
// don't support it. An empty name resolves to Best(features).
//
// Missing CPU support is never an error: it's logged once and the fallback (same tile shape)
// is returned instead.
func Resolve(name string, features cpu.Features) (*Variant, error) {
	if name == "" {
		return Best(features), nil
	}
	v, found := Lookup(name)
	if !found {
		return nil, errors.Wrapf(ErrUnknownVariant, "%q (registered: %s)", name, strings.Join(Names(), ", "))
	}
	for !features.Supports(v.Requires) {
		fallback, found := Lookup(v.Fallback)
		if !found {
			// Without a fallback of the same shape, take the best available.
			fallback = Best(features)
		}
		warnFallbackOnce(v, fallback, features)
		v = fallback
	}
	return v, nil
}

func warnFallbackOnce(v, fallback *Variant, features cpu.Features) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if warnedFallback[v.Name] {
		return
	}
	warnedFallback[v.Name] = true
	klog.Warningf("GEMM kernel %q requires %s, not available (best is %s): using %q instead",
		v.Name, v.Requires, features.Best(), fallback.Name)
}

// Names of all registered variants, in order of preference.
func Names() []string {
	variants := Variants()
	names := make([]string, len(variants))
	for ii, v := range variants {
		names[ii] = v.Name
	}
	return names
}

// Default returns Best(cpu.Detect()). It is computed on the first call and cached.
func Default() *Variant {
	defaultOnce.Do(func() {
		features := cpu.Detect()
		defaultVariant = Best(features)
		klog.V(1).Infof("GEMM default kernel %s (cpu level %s, arch %s)", defaultVariant, features.Best(), features.Architecture)
	})
	return defaultVariant
}
