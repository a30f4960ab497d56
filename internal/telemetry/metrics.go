// Package telemetry holds the Prometheus collectors shared by services and the HTTP layer.
package telemetry

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fintrack"

var (
    // PartialFailures counts mutations where the transaction row and the wallet balance diverged.
    PartialFailures = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "partial_failures_total",
            Help:      "Transaction mutations that committed only some of their steps",
        },
        []string{"op"},
    )
    // ConflictRetries counts units of work retried after a serialization conflict.
    ConflictRetries = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "conflict_retries_total",
            Help:      "Retries after a concurrency conflict",
        },
        []string{"op"},
    )
    // ReconcileDrift counts wallets whose cached balance differed from the recomputed one.
    ReconcileDrift = promauto.NewCounter(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "reconcile_drift_total",
            Help:      "Wallets corrected by reconciliation",
        },
    )

    HTTPRequestsTotal = promauto.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: namespace,
            Name:      "http_requests_total",
            Help:      "Total number of HTTP requests",
        },
        []string{"method", "route", "status"},
    )
    HTTPRequestDuration = promauto.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: namespace,
            Name:      "http_request_duration_seconds",
            Help:      "Duration of HTTP requests in seconds",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"method", "route"},
    )
)
