package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// StoreMetrics holds the swap engine's observability counters. Without a
// configured meter provider the counters are no-ops, so the store can
// always carry one.
type StoreMetrics struct {
	swapIns       metric.Int64Counter
	swapInErrors  metric.Int64Counter
	swapOuts      metric.Int64Counter
	swapOutErrors metric.Int64Counter
	bytesIn       metric.Int64Counter
	bytesOut      metric.Int64Counter
}

func NewStoreMetrics() (*StoreMetrics, error) {
	meter := otel.Meter("github.com/Sergey-Kirpa/squid/internal/store")

	var sm StoreMetrics
	var err error

	sm.swapIns, err = meter.Int64Counter(
		"squid.store.swap.ins",
		metric.WithDescription("Completed swap-in attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create swap.ins counter: %w", err)
	}

	sm.swapInErrors, err = meter.Int64Counter(
		"squid.store.swap.in.errors",
		metric.WithDescription("Swap-in attempts that ended with an I/O error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create swap.in.errors counter: %w", err)
	}

	sm.swapOuts, err = meter.Int64Counter(
		"squid.store.swap.outs",
		metric.WithDescription("Completed swap-out attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create swap.outs counter: %w", err)
	}

	sm.swapOutErrors, err = meter.Int64Counter(
		"squid.store.swap.out.errors",
		metric.WithDescription("Swap-out attempts that ended with an I/O error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create swap.out.errors counter: %w", err)
	}

	sm.bytesIn, err = meter.Int64Counter(
		"squid.store.swap.bytes.in",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes read back from the swap backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create swap.bytes.in counter: %w", err)
	}

	sm.bytesOut, err = meter.Int64Counter(
		"squid.store.swap.bytes.out",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes persisted to the swap backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create swap.bytes.out counter: %w", err)
	}

	return &sm, nil
}

func (sm *StoreMetrics) RecordSwapIn(ctx context.Context, failed bool) {
	sm.swapIns.Add(ctx, 1)
	if failed {
		sm.swapInErrors.Add(ctx, 1)
	}
}

func (sm *StoreMetrics) RecordSwapOut(ctx context.Context, failed bool) {
	sm.swapOuts.Add(ctx, 1)
	if failed {
		sm.swapOutErrors.Add(ctx, 1)
	}
}

func (sm *StoreMetrics) AddBytesSwappedIn(ctx context.Context, n int64) {
	sm.bytesIn.Add(ctx, n)
}

func (sm *StoreMetrics) AddBytesSwappedOut(ctx context.Context, n int64) {
	sm.bytesOut.Add(ctx, n)
}
